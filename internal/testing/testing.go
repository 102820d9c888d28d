// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/vidproxy/internal/downloader"
	"github.com/lrstanley/go-ytdlp"
)

// ExecCall records one invocation seen by [FakeExecutor].
type ExecCall struct {
	Name string
	// Args are the flags built by go-ytdlp followed by the positional arguments.
	Args []string
}

// ExecResult is a scripted answer for [FakeExecutor].
type ExecResult struct {
	Stdout string
	Stderr string
	Exit   int
	// Ext creates "<base><Ext>" next to the --output template before returning.
	Ext     string
	Content string
	// PrintPath appends the created file's path to stdout, like --print after_move:filepath.
	PrintPath bool
}

// FakeExecutor is a test double for downloader.Executor.
//
// --version probes always succeed. Other calls consume Results in order; once exhausted,
// the last result repeats.
type FakeExecutor struct {
	mu      sync.Mutex
	Version string
	Results []ExecResult
	Calls   []ExecCall
}

func (f *FakeExecutor) Execute(ctx context.Context, tool downloader.Tool, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := tool.Command[0]
	if len(args) > 0 && args[len(args)-1] == "--version" {
		v := f.Version
		if v == "" {
			v = "2024.08.06"
		}
		return NewResult(v, "", 0), nil
	}

	call := ExecCall{Name: name, Args: BuildArgs(tool, cmd, args...)}
	f.Calls = append(f.Calls, call)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.Results) == 0 {
		return NewResult("", "", 0), nil
	}

	res := f.Results[min(len(f.Calls)-1, len(f.Results)-1)]

	stdout := res.Stdout
	if res.Ext != "" && call.Template() != "" {
		path := filepath.Join(filepath.Dir(call.Template()), call.Base()+res.Ext)
		if err := os.WriteFile(path, []byte(res.Content), 0o644); err != nil {
			return nil, err
		}
		if res.PrintPath {
			stdout += path + "\n"
		}
	}

	out := NewResult(stdout, res.Stderr, res.Exit)
	out.Executable = name
	out.Args = call.Args
	if res.Exit != 0 {
		return out, fmt.Errorf("exit status %d", res.Exit)
	}
	return out, nil
}

// Downloads returns the calls that carried an output template.
func (f *FakeExecutor) Downloads() []ExecCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []ExecCall
	for _, c := range f.Calls {
		if c.Template() != "" {
			calls = append(calls, c)
		}
	}
	return calls
}

// Template returns the --output value of a call.
func (c ExecCall) Template() string {
	for i, a := range c.Args {
		if a == "--output" && i+1 < len(c.Args) {
			return c.Args[i+1]
		}
	}
	return ""
}

// Base returns the output base name of a call's --output template.
func (c ExecCall) Base() string {
	return strings.TrimSuffix(filepath.Base(c.Template()), ".%(ext)s")
}

// BuildArgs returns the argument list go-ytdlp would pass to tool for cmd.
func BuildArgs(tool downloader.Tool, cmd *ytdlp.Command, args ...string) []string {
	c := cmd.SetExecutable(tool.Command[0]).BuildCommand(context.Background(), args...)
	return append(slices.Clone(tool.Command[1:]), c.Args[1:]...)
}

// NewResult builds a finished run. Stdout lines holding JSON documents are exposed to
// [ytdlp.Result.GetExtractedInfo].
func NewResult(stdout, stderr string, exit int) *ytdlp.Result {
	stdout = strings.TrimRight(stdout, "\n")
	res := &ytdlp.Result{ExitCode: exit, Stdout: stdout, Stderr: stderr}
	if stdout == "" {
		return res
	}
	for line := range strings.SplitSeq(stdout, "\n") {
		l := &ytdlp.ResultLog{Timestamp: time.Now(), Line: line, Pipe: "stdout"}
		if json.Valid([]byte(line)) && strings.HasPrefix(line, "{") {
			raw := json.RawMessage(line)
			l.JSON = &raw
		}
		res.OutputLogs = append(res.OutputLogs, l)
	}
	return res
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
