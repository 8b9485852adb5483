// Package driver shells out to the external build tooling. Every
// invocation blocks until the child exits; the exit status and the
// captured output are the only synchronization with it.
package driver

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/qiniu/x/log"
)

// Runner executes external commands for the build recipe.
type Runner struct {
	Ctx context.Context

	// Verbose streams child output to Stdout while it is also captured.
	Verbose bool
	// Stdout is the stream sink for verbose mode; defaults to os.Stdout.
	Stdout io.Writer
}

// Run executes name with args in dir and returns the combined
// stdout+stderr of the child. A non-zero exit is returned as the error
// together with whatever output was produced.
func (r *Runner) Run(dir, name string, args ...string) (string, error) {
	ctx := r.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var buf bytes.Buffer
	var sink io.Writer = &buf
	if r.Verbose {
		out := r.Stdout
		if out == nil {
			out = os.Stdout
		}
		sink = io.MultiWriter(&buf, out)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	log.Debugf("run: %s %s (in %s)", name, strings.Join(args, " "), dir)
	err := cmd.Run()
	return buf.String(), err
}

// tail returns the last n lines of s, for error reports that should
// not carry a full build log.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
