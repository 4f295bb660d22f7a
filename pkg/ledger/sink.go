package ledger

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// PersistenceSink is told about every ledger rewrite, e.g. to commit the
// file to version control.
type PersistenceSink interface {
	Persist(ctx context.Context, path string) error
}

// SinkFunc adapts a function to a PersistenceSink.
type SinkFunc func(ctx context.Context, path string) error

// Persist implements PersistenceSink.
func (f SinkFunc) Persist(ctx context.Context, path string) error {
	return f(ctx, path)
}

// ExecSink runs Command with the ledger path appended as the last argument.
type ExecSink struct {
	Command []string
}

// Persist implements PersistenceSink.
func (s ExecSink) Persist(ctx context.Context, path string) error {
	if len(s.Command) == 0 {
		return errors.New("exec sink: empty command")
	}
	args := append(append([]string{}, s.Command[1:]...), path)
	out, err := exec.CommandContext(ctx, s.Command[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("exec sink %s: %w: %s", s.Command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
