package downloader

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidproxy/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

// InvokerOpts configures an [Invoker].
type InvokerOpts struct {
	Tools     *ToolLocator
	Executor  Executor
	UserAgent string
	Accept    string
	Headers   *shared.RequestHeaders
	// CancelWait bounds how long a cancelled run may hold its output pipes.
	CancelWait time.Duration
	Logger     *log.Logger
}

// Invoker runs the downloader with the configured request headers.
type Invoker struct {
	tools      *ToolLocator
	exec       Executor
	headers    []string
	cancelWait time.Duration
	logger     *log.Logger
}

// NewInvoker creates an invoker. Tools is required.
func NewInvoker(opts InvokerOpts) *Invoker {
	if opts.Executor == nil {
		opts.Executor = YtdlpExecutor{}
	}
	if opts.CancelWait <= 0 {
		opts.CancelWait = DefaultCancelWait
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Invoker{
		tools:      opts.Tools,
		exec:       opts.Executor,
		headers:    headerFields(opts.UserAgent, opts.Accept, opts.Headers),
		cancelWait: opts.CancelWait,
		logger:     opts.Logger,
	}
}

// Tool resolves the downloader invocation.
func (i *Invoker) Tool(ctx context.Context) (Tool, error) {
	if i.tools == nil {
		return Tool{}, fmt.Errorf("%w: no tool locator configured", shared.ErrToolNotFound)
	}
	return i.tools.Resolve(ctx)
}

// Run executes cmd with args under timeout. The caller's cmd is not modified.
//
// A timeout is reported as a [*shared.CommandError] wrapping [shared.ErrTimeout]; the
// caller's own cancellation leaves the context error in the chain.
func (i *Invoker) Run(ctx context.Context, timeout time.Duration, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error) {
	tool, err := i.Tool(ctx)
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := i.exec.Execute(ctx, tool, i.prepare(cmd), args...)
	elapsed := time.Since(start)
	if err == nil {
		i.logger.Debug("downloader finished", "elapsed", elapsed.Round(time.Millisecond))
		return res, nil
	}

	cmdErr := commandError(tool, res, err)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		cmdErr.Err = fmt.Errorf("%w after %s", shared.ErrTimeout, timeout)
	case ctx.Err() != nil:
		cmdErr.Err = ctx.Err()
	}

	i.logger.Debug("downloader failed", "elapsed", elapsed.Round(time.Millisecond), "exit", cmdErr.ExitCode, "error", cmdErr)
	return res, cmdErr
}

func (i *Invoker) prepare(cmd *ytdlp.Command) *ytdlp.Command {
	if cmd == nil {
		cmd = ytdlp.New()
	}
	cmd = cmd.Clone().SetCancelMaxWait(i.cancelWait)
	for _, h := range i.headers {
		cmd.AddHeaders(h)
	}
	return cmd
}

// commandError maps an executor failure onto [shared.CommandError], keeping the tool's
// stderr and exit code when the process ran.
func commandError(tool Tool, res *ytdlp.Result, err error) *shared.CommandError {
	var cmdErr *shared.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}

	cmdErr = &shared.CommandError{Command: tool.Command, ExitCode: -1, Err: err}
	if res != nil {
		if res.Executable != "" {
			cmdErr.Command = append([]string{res.Executable}, res.Args...)
		}
		cmdErr.ExitCode = res.ExitCode
		cmdErr.Stderr = res.Stderr
	}
	if _, ok := ytdlp.IsMisconfigError(err); ok || errors.Is(err, exec.ErrNotFound) {
		cmdErr.Err = fmt.Errorf("%w: %w", shared.ErrToolNotFound, err)
	}
	return cmdErr
}

// headerFields builds FIELD:VALUE pairs for --add-headers. Imported headers override the
// configured User-Agent and Accept values.
func headerFields(userAgent, accept string, imported *shared.RequestHeaders) []string {
	var fields []string
	has := func(name string) bool {
		if imported == nil {
			return false
		}
		for k := range imported.Headers {
			if strings.EqualFold(k, name) {
				return true
			}
		}
		return false
	}

	if userAgent != "" && !has("User-Agent") {
		fields = append(fields, "User-Agent:"+userAgent)
	}
	if accept != "" && !has("Accept") {
		fields = append(fields, "Accept:"+accept)
	}
	return append(fields, imported.Fields()...)
}
