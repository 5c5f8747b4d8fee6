package execution

import (
	"context"
	"errors"

	"tradepipe/internal/protocol"
	"tradepipe/internal/recorder"
)

// Journal is an append-only sink of executions.
type Journal interface {
	Append(ctx context.Context, e protocol.Execution) error
	Close() error
}

// MultiJournal appends to every sink and joins their errors.
type MultiJournal []Journal

func (m MultiJournal) Append(ctx context.Context, e protocol.Execution) error {
	var errs []error
	for _, j := range m {
		if err := j.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiJournal) Close() error {
	var errs []error
	for _, j := range m {
		if err := j.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileJournal writes executions as JSON lines through a recorder.Writer.
type FileJournal struct {
	w *recorder.Writer
}

// OpenFileJournal opens path for appending and starts the writer loop.
func OpenFileJournal(ctx context.Context, path string) (*FileJournal, error) {
	w, err := recorder.NewWriter(recorder.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &FileJournal{w: w}, nil
}

func (j *FileJournal) Append(_ context.Context, e protocol.Execution) error {
	return j.w.TryAppend(e)
}

func (j *FileJournal) Close() error {
	return j.w.Close()
}

func (j *FileJournal) Path() string {
	return j.w.Path()
}
