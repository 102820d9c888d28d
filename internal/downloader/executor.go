package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// DefaultCancelWait is how long a cancelled run may take to release its output pipes.
const DefaultCancelWait = 2 * time.Second

// Executor runs a prepared downloader command for tool.
//
// When the process ran, the [*ytdlp.Result] is returned alongside any error so stderr and
// the exit code stay available to the caller.
type Executor interface {
	Execute(ctx context.Context, tool Tool, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error)
}

// ExecFunc adapts a function to the [Executor] interface.
type ExecFunc func(ctx context.Context, tool Tool, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error)

func (f ExecFunc) Execute(ctx context.Context, tool Tool, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error) {
	return f(ctx, tool, cmd, args...)
}

// YtdlpExecutor runs commands through go-ytdlp.
//
// A tool launched through an interpreter ("python3 -m yt_dlp") has no single executable,
// so the library builds its argument list and the interpreter arguments are spliced in
// before it is started here.
type YtdlpExecutor struct{}

func (YtdlpExecutor) Execute(ctx context.Context, tool Tool, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error) {
	cmd.SetExecutable(tool.Command[0])
	if len(tool.Command) == 1 {
		return cmd.Run(ctx, args...)
	}
	return runInterpreted(ctx, tool.Command[1:], cmd.BuildCommand(ctx, args...))
}

func runInterpreted(ctx context.Context, prefix []string, c *exec.Cmd) (*ytdlp.Result, error) {
	var stdout, stderr bytes.Buffer

	c.Args = slices.Concat(c.Args[:1], prefix, c.Args[1:])
	c.Stdout = &stdout
	c.Stderr = &stderr
	if c.WaitDelay == 0 {
		c.WaitDelay = DefaultCancelWait
	}
	killProcessGroup(c)

	err := c.Run()

	res := &ytdlp.Result{
		Executable: c.Path,
		Args:       c.Args[1:],
		ExitCode:   -1,
		Stdout:     strings.TrimRight(stdout.String(), "\r\n"),
		Stderr:     strings.TrimRight(stderr.String(), "\r\n"),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}
	res.OutputLogs = append(outputLogs("stdout", res.Stdout), outputLogs("stderr", res.Stderr)...)

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return res, err
}

// outputLogs splits text into result lines, keeping JSON documents parseable by
// [ytdlp.Result.GetExtractedInfo].
func outputLogs(pipe, text string) []*ytdlp.ResultLog {
	if text == "" {
		return nil
	}

	now := time.Now()
	var logs []*ytdlp.ResultLog
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimRight(line, "\r")
		l := &ytdlp.ResultLog{Timestamp: now, Line: line, Pipe: pipe}
		if strings.HasPrefix(line, "{") && json.Valid([]byte(line)) {
			raw := json.RawMessage(line)
			l.JSON = &raw
		}
		logs = append(logs, l)
	}
	return logs
}
