package backends

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/docsift/docsift/llm"
)

func init() {
	llm.RegisterBackend(llm.KindLocal, newLocal)
}

// Local invokes a model through an external command, appending the
// prompt as the final argument. The default command shells out to the
// ollama CLI, which streams its full output to stdout.
type Local struct {
	command []string
	model   string
}

func newLocal(cfg llm.BackendConfig) (llm.Backend, error) {
	command := cfg.Command
	if len(command) == 0 {
		if cfg.Model == "" {
			return nil, fmt.Errorf("local backend requires a model name or command")
		}
		command = []string{"ollama", "run", cfg.Model}
	}
	return &Local{command: command, model: cfg.Model}, nil
}

// Name returns the backend identifier.
func (l *Local) Name() string {
	return "local/" + l.command[0]
}

// Kind returns the backend family.
func (l *Local) Kind() llm.Kind {
	return llm.KindLocal
}

// Complete runs the command with the prompt appended. The response
// token cap is ignored: CLI tools expose no such control.
func (l *Local) Complete(ctx context.Context, prompt string, _ int) (string, error) {
	args := append(append([]string(nil), l.command[1:]...), prompt)
	cmd := exec.CommandContext(ctx, l.command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := stderr.String()
		if len(detail) > 200 {
			detail = detail[:200] + "..."
		}
		return "", llm.NewDispatchError(llm.ErrProcess,
			fmt.Errorf("%s failed: %w: %s", l.command[0], err, detail))
	}

	return stdout.String(), nil
}
