package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// invocation is one run of an external program.
type invocation struct {
	name    string
	args    []string
	dir     string
	env     []string
	stdin   []byte
	timeout time.Duration
}

// run executes the program and returns its stdout. A timeout or a canceled
// ctx is returned as the bare context error.
func (inv invocation) run(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.name, inv.args...)
	cmd.Dir = inv.dir
	cmd.Stdin = bytes.NewReader(inv.stdin)
	cmd.WaitDelay = time.Second
	cmd.Env = append(cmd.Environ(), inv.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func environ(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
