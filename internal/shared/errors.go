package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Pipeline errors
	ErrToolNotFound          = fmt.Errorf("no working downloader invocation found")
	ErrMetadataUnavailable   = fmt.Errorf("video metadata unavailable")
	ErrStrategyExhausted     = fmt.Errorf("all download strategies failed")
	ErrAllFallbacksExhausted = fmt.Errorf("all fallback instances failed")
	ErrOutputFileMissing     = fmt.Errorf("output file missing")
	ErrEmptyOutputFile       = fmt.Errorf("output file is empty")
	ErrTimeout               = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrFileNotFound       = fmt.Errorf("file not found")
)

// CommandError is returned when the external downloader exits unsuccessfully.
//
// Stderr holds the tool's diagnostic output and is only ever logged.
type CommandError struct {
	Command  []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s exited with code %d: %s", commandName(e.Command), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Message returns the text used for failure classification.
func (e *CommandError) Message() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func commandName(cmd []string) string {
	if len(cmd) == 0 {
		return "command"
	}
	return cmd[0]
}

// AttemptError captures one failed download strategy.
type AttemptError struct {
	Strategy string
	Err      error
}

// StrategyExhaustedError is returned when every download strategy failed.
//
// It unwraps to the last attempt's error, which is the one surfaced to classification.
type StrategyExhaustedError struct {
	Attempts []AttemptError
}

func (e *StrategyExhaustedError) Error() string {
	if last := e.Last(); last != nil {
		return fmt.Sprintf("%s after %d attempt(s): %v", ErrStrategyExhausted, len(e.Attempts), last)
	}
	return ErrStrategyExhausted.Error()
}

// Last returns the error of the final attempt.
func (e *StrategyExhaustedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

func (e *StrategyExhaustedError) Is(target error) bool {
	return target == ErrStrategyExhausted
}

func (e *StrategyExhaustedError) Unwrap() error {
	return e.Last()
}

// InstanceError captures one failed fallback instance.
type InstanceError struct {
	Instance string
	Err      error
}

// AllFallbacksExhaustedError is returned when no fallback instance produced a file.
type AllFallbacksExhaustedError struct {
	Attempts []InstanceError
}

func (e *AllFallbacksExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d instance(s) tried", ErrAllFallbacksExhausted, len(e.Attempts))
}

func (e *AllFallbacksExhaustedError) Is(target error) bool {
	return target == ErrAllFallbacksExhausted
}

// RootMessage returns the most specific diagnostic text in an error chain.
//
// A [CommandError] anywhere in the chain wins, since its stderr is what the tool reported.
func RootMessage(err error) string {
	if err == nil {
		return ""
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Message()
	}
	return err.Error()
}
