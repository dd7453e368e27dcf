package oracleserver

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

var (
	ErrMissingField = errors.New("missing request field")
	ErrBadField     = errors.New("malformed request field")
)

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func requiredString(req *structpb.Struct, name string) (string, error) {
	s := stringField(req, name)
	if s == "" {
		return "", fmt.Errorf("%s: %w", name, ErrMissingField)
	}
	return s, nil
}

// intField reads a whole number. ok is false when the field is absent.
func intField(req *structpb.Struct, name string) (n int, ok bool, err error) {
	v, present := req.GetFields()[name]
	if !present {
		return 0, false, nil
	}
	num, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || num.NumberValue != math.Trunc(num.NumberValue) || math.Abs(num.NumberValue) > math.MaxInt32 {
		return 0, true, fmt.Errorf("%s must be an integer: %w", name, ErrBadField)
	}
	return int(num.NumberValue), true, nil
}

// boardSize reads the optional "width" and "height" fields over the defaults w and h.
func boardSize(req *structpb.Struct, w, h int) (int, int, error) {
	for _, f := range []struct {
		name string
		dst  *int
	}{{"width", &w}, {"height", &h}} {
		n, ok, err := intField(req, f.name)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			continue
		}
		if n < 1 || n > core.MaxSide {
			return 0, 0, fmt.Errorf("%s must be between 1 and %d: %w", f.name, core.MaxSide, ErrBadField)
		}
		*f.dst = n
	}
	return w, h, nil
}

func ownerName(o core.Owner) string {
	if o == core.OwnerNone {
		return ""
	}
	return o.String()
}

func moveFields(m core.Move, space *rules.ActionSpace) map[string]any {
	out := map[string]any{
		"text":   m.String(),
		"piece":  m.Piece.Kind.String(),
		"owner":  m.Piece.Owner.String(),
		"from_x": m.From.X,
		"from_y": m.From.Y,
	}
	if m.IsRotation() {
		out["kind"] = "rotation"
		out["orientation"] = m.Result.Orientation
	} else {
		out["kind"] = "walk"
		out["to_x"] = m.To.X
		out["to_y"] = m.To.Y
	}
	if idx, err := space.MoveToIndex(m); err == nil {
		out["action"] = idx
	}
	return out
}

func statusFields(s game.Status) map[string]any {
	return map[string]any{
		"over":   s.Over,
		"draw":   s.IsDraw,
		"winner": ownerName(s.Winner),
	}
}

func outcomeFields(out game.Outcome, space *rules.ActionSpace) map[string]any {
	fields := map[string]any{
		"move":   moveFields(out.Move, space),
		"player": out.Mover.String(),
		"reward": out.Reward,
		"hops":   out.Hops(),
	}
	if d := out.Light.Destroyed; d != nil {
		fields["destroyed"] = map[string]any{
			"piece": d.Piece.Kind.String(),
			"owner": d.Piece.Owner.String(),
			"x":     d.Field.X,
			"y":     d.Field.Y,
		}
	}
	return fields
}

func historyFields(h game.HistoryEntry) map[string]any {
	return map[string]any{
		"round":    h.Round,
		"player":   h.Player.String(),
		"move":     h.Move.String(),
		"reward":   h.Reward,
		"hops":     h.Hops,
		"position": h.Notation,
	}
}

// list converts to the []any form structpb accepts.
func list[T any](items []T, conv func(T) map[string]any) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = conv(it)
	}
	return out
}
