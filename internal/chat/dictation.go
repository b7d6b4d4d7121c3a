package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/iksnae/ptsp-chat/internal"
)

// ErrDictationUnavailable is returned when no speech input is configured
var ErrDictationUnavailable = errors.New("dictation unavailable")

// Dictation captures one utterance and returns its transcript
type Dictation interface {
	Listen(ctx context.Context) (string, error)
}

// CommandDictation runs an external recognizer and reads the transcript
// from its stdout
type CommandDictation struct {
	Command string
	Args    []string
}

// Listen runs the recognizer until it exits or ctx is done
func (d *CommandDictation) Listen(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.Command, d.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		internal.LogDebug("dictation stderr: %s", strings.TrimSpace(stderr.String()))
		return "", fmt.Errorf("run %s: %w", d.Command, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// DetectDictation returns a command-based Dictation when commandLine names
// an executable on PATH, nil otherwise
func DetectDictation(commandLine string) Dictation {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil
	}
	if !internal.CommandAvailable(fields[0]) {
		internal.LogDebug("dictation command %q not found", fields[0])
		return nil
	}
	return &CommandDictation{Command: fields[0], Args: fields[1:]}
}

// DictationAvailable reports whether speech input can be used
func (c *Controller) DictationAvailable() bool {
	return c.dictation != nil
}

// Dictate captures speech and returns the transcript. The caller decides
// whether to submit it.
func (c *Controller) Dictate(ctx context.Context) (string, error) {
	if c.dictation == nil {
		return "", ErrDictationUnavailable
	}
	if c.State() == StateSending {
		return "", ErrBusy
	}
	return c.dictation.Listen(ctx)
}
