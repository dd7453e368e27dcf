package experience

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrPersistenceNotConfigured is returned when persistence operations are attempted without configuration
	ErrPersistenceNotConfigured = errors.New("persistence layer not configured")
	// ErrInvalidPersistenceType is returned when an unknown persistence type is specified
	ErrInvalidPersistenceType = errors.New("invalid persistence type")
)

// PersistenceType represents the type of persistence backend
type PersistenceType string

const (
	// PersistenceTypeNone disables persistence
	PersistenceTypeNone PersistenceType = "none"
	// PersistenceTypeFile writes JSON lines to rotating files
	PersistenceTypeFile PersistenceType = "file"
)

// PersistenceConfig contains configuration for the persistence layer
type PersistenceConfig struct {
	Type    PersistenceType
	BaseDir string
	// MaxFileSize rotates to a new file once reached; zero disables rotation.
	MaxFileSize int64
}

// DefaultPersistenceConfig returns a default persistence configuration
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Type:        PersistenceTypeNone,
		BaseDir:     "experiences",
		MaxFileSize: 100 * 1024 * 1024, // 100MB
	}
}

// PersistenceLayer stores transitions outside the process, e.g. the ones a replay
// buffer clear would otherwise lose.
type PersistenceLayer interface {
	Write(ctx context.Context, transitions []Transition) error
	// Read returns up to limit stored transitions of a run; an empty runID matches all
	// and a non-positive limit means no limit.
	Read(ctx context.Context, runID string, limit int) ([]Transition, error)
	Close() error
	Stats() PersistenceStats
}

// PersistenceStats contains statistics about persistence operations
type PersistenceStats struct {
	TotalWritten  int64
	TotalRead     int64
	BytesWritten  int64
	WriteErrors   int64
	ReadErrors    int64
	LastWriteTime time.Time
}

// FilePersistence implements file-based persistence
type FilePersistence struct {
	config PersistenceConfig
	logger zerolog.Logger

	mu    sync.Mutex
	stats PersistenceStats

	currentFile *os.File
	currentSize int64
	fileIndex   int
}

// NewFilePersistence creates a new file-based persistence layer
func NewFilePersistence(config PersistenceConfig, logger zerolog.Logger) (*FilePersistence, error) {
	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	fp := &FilePersistence{
		config: config,
		logger: logger.With().Str("component", "file_persistence").Logger(),
	}
	if err := fp.rotateFile(); err != nil {
		return nil, err
	}
	return fp, nil
}

// Write appends a batch of transitions to the current file
func (fp *FilePersistence) Write(ctx context.Context, transitions []Transition) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.currentFile == nil {
		return ErrPersistenceNotConfigured
	}

	w := bufio.NewWriter(fp.currentFile)
	for _, t := range transitions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fp.config.MaxFileSize > 0 && fp.currentSize >= fp.config.MaxFileSize {
			if err := w.Flush(); err != nil {
				fp.stats.WriteErrors++
				return fmt.Errorf("failed to flush file: %w", err)
			}
			if err := fp.rotateFile(); err != nil {
				fp.stats.WriteErrors++
				return fmt.Errorf("failed to rotate file: %w", err)
			}
			w = bufio.NewWriter(fp.currentFile)
		}

		data, err := json.Marshal(t)
		if err != nil {
			fp.stats.WriteErrors++
			return fmt.Errorf("failed to marshal transition: %w", err)
		}
		n, err := w.Write(append(data, '\n'))
		if err != nil {
			fp.stats.WriteErrors++
			return fmt.Errorf("failed to write transition: %w", err)
		}
		fp.currentSize += int64(n)
		fp.stats.TotalWritten++
		fp.stats.BytesWritten += int64(n)
	}
	if err := w.Flush(); err != nil {
		fp.stats.WriteErrors++
		return fmt.Errorf("failed to flush file: %w", err)
	}
	if err := fp.currentFile.Sync(); err != nil {
		fp.logger.Warn().Err(err).Msg("Failed to sync file")
	}
	fp.stats.LastWriteTime = time.Now()

	fp.logger.Debug().
		Int("batch_size", len(transitions)).
		Int64("file_size", fp.currentSize).
		Msg("Wrote transition batch to file")
	return nil
}

// Read retrieves transitions from every file in the base directory, oldest file first.
func (fp *FilePersistence) Read(ctx context.Context, runID string, limit int) ([]Transition, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(fp.config.BaseDir, "transitions_*.jsonl"))
	if err != nil {
		fp.stats.ReadErrors++
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	sort.Strings(files)

	var out []Transition
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		remaining := 0
		if limit > 0 {
			remaining = limit - len(out)
		}
		ts, err := readTransitions(file, runID, remaining)
		if err != nil {
			fp.stats.ReadErrors++
			fp.logger.Warn().Err(err).Str("file", file).Msg("Failed to read transition file")
			continue
		}
		out = append(out, ts...)
	}
	fp.stats.TotalRead += int64(len(out))
	return out, nil
}

func readTransitions(filename, runID string, limit int) ([]Transition, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []Transition
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if limit > 0 && len(out) >= limit {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var t Transition
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transition: %w", err)
		}
		if runID == "" || t.RunID == runID {
			out = append(out, t)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return out, nil
}

// rotateFile closes the current file and opens a new one
func (fp *FilePersistence) rotateFile() error {
	if fp.currentFile != nil {
		if err := fp.currentFile.Close(); err != nil {
			fp.logger.Warn().Err(err).Msg("Failed to close previous file")
		}
	}

	timestamp := time.Now().Format("20060102_150405")
	var filename string
	for {
		filename = filepath.Join(fp.config.BaseDir, fmt.Sprintf("transitions_%s_%04d.jsonl", timestamp, fp.fileIndex))
		fp.fileIndex++
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			break
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	fp.currentFile = file
	fp.currentSize = 0

	fp.logger.Info().Str("filename", filename).Msg("Rotated to new transition file")
	return nil
}

// Close flushes and closes the current file
func (fp *FilePersistence) Close() error {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if fp.currentFile == nil {
		return nil
	}
	err := fp.currentFile.Close()
	fp.currentFile = nil
	return err
}

// Stats returns persistence statistics
func (fp *FilePersistence) Stats() PersistenceStats {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.stats
}

// NullPersistence discards everything.
type NullPersistence struct{}

func (NullPersistence) Write(context.Context, []Transition) error { return nil }

func (NullPersistence) Read(context.Context, string, int) ([]Transition, error) { return nil, nil }

func (NullPersistence) Close() error { return nil }

func (NullPersistence) Stats() PersistenceStats { return PersistenceStats{} }

// NewPersistenceLayer creates the layer named by config.Type.
func NewPersistenceLayer(config PersistenceConfig, logger zerolog.Logger) (PersistenceLayer, error) {
	switch config.Type {
	case PersistenceTypeNone, "":
		return NullPersistence{}, nil
	case PersistenceTypeFile:
		return NewFilePersistence(config, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidPersistenceType, config.Type)
	}
}
