package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidField = errors.New("invalid field")
	ErrEmptyField   = errors.New("field is empty")
	ErrNotOwned     = errors.New("piece not owned by player")
	ErrPieceChanged = errors.New("piece on field does not match move")
	ErrIllegalMove  = errors.New("illegal move")
	ErrGameOver     = errors.New("game is over")
	ErrInvalidCode  = errors.New("invalid piece code")
	ErrInvalidOwner = errors.New("invalid owner")
	// ErrInvariant marks a corrupted board or a caller bug. It is never recoverable.
	ErrInvariant = errors.New("engine invariant violated")
)

// WrapMoveError adds the move and player to an error message.
func WrapMoveError(owner Owner, m Move, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %s: %w", owner, m, err)
}

// Invariantf builds an ErrInvariant with context.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvariant)
}
