package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/vanderheijden86/graphlens/pkg/debug"
)

// Result records one hook run.
type Result struct {
	Hook     Hook
	Phase    Phase
	Success  bool
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// Executor runs configured hooks for one write and keeps their results.
type Executor struct {
	config  *Config
	context WriteContext
	results []Result
	log     *zap.Logger
}

// NewExecutor creates an executor for cfg. A nil cfg runs nothing.
func NewExecutor(cfg *Config, wc WriteContext) *Executor {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Executor{config: cfg, context: wc, log: debug.Named("hooks")}
}

// RunPreWrite runs pre-write hooks in order and stops at the first failure
// whose on_error is fail.
func (e *Executor) RunPreWrite(ctx context.Context) error {
	for _, h := range e.config.Hooks.PreWrite {
		r := e.run(ctx, h, PreWrite)
		if !r.Success && h.OnError == OnErrorFail {
			return fmt.Errorf("pre-write hook %q failed: %w", h.Name, r.Error)
		}
	}
	return nil
}

// RunPostWrite runs every post-write hook. Failures with on_error fail are
// joined into the returned error once all hooks have run.
func (e *Executor) RunPostWrite(ctx context.Context) error {
	var errs []error
	for _, h := range e.config.Hooks.PostWrite {
		r := e.run(ctx, h, PostWrite)
		if !r.Success && h.OnError == OnErrorFail {
			errs = append(errs, fmt.Errorf("post-write hook %q failed: %w", h.Name, r.Error))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) run(ctx context.Context, h Hook, phase Phase) Result {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shell(ctx, h.Command)
	cmd.Env = append(os.Environ(), e.context.ToEnv()...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	// A killed shell can leave children holding the pipes open.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r := Result{
		Hook:     h,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
		Error:    err,
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.Error = fmt.Errorf("timed out after %s", timeout)
	}
	e.results = append(e.results, r)

	fields := []zap.Field{
		zap.String("hook", h.Name),
		zap.String("phase", string(phase)),
		zap.Duration("took", r.Duration),
	}
	if r.Success {
		e.log.Debug("hook ok", fields...)
	} else {
		e.log.Warn("hook failed", append(fields, zap.Error(r.Error), zap.String("stderr", truncate(r.Stderr, 200)))...)
	}
	return r
}

func shell(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// Results returns every hook run so far, in order.
func (e *Executor) Results() []Result {
	return e.results
}

// Summary describes the runs, listing failures with trimmed stderr.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	for _, r := range e.results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "hooks: %d succeeded, %d failed", ok, failed)
	for _, r := range e.results {
		if r.Success {
			continue
		}
		fmt.Fprintf(&b, "\n  %s (%s): %v", r.Hook.Name, r.Phase, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&b, "\n    stderr: %s", truncate(r.Stderr, 200))
		}
	}
	return b.String()
}

// RunHooks loads projectDir's hooks file and returns an executor for wc.
// It returns nil without error when disabled or nothing is configured.
func RunHooks(projectDir string, wc WriteContext, disabled bool) (*Executor, error) {
	if disabled {
		return nil, nil
	}
	l := NewLoader(WithProjectDir(projectDir))
	if err := l.Load(); err != nil {
		return nil, err
	}
	for _, w := range l.Warnings() {
		debug.Log("hooks: %s", w)
	}
	if !l.HasHooks() {
		return nil, nil
	}
	return NewExecutor(l.Config(), wc), nil
}

// truncate cuts s to n display columns, ending in "..." when cut.
func truncate(s string, n int) string {
	return runewidth.Truncate(s, n, "...")
}
