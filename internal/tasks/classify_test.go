package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/desertthunder/vidproxy/internal/shared"
)

func stderr(msg string) error {
	return &shared.CommandError{Command: []string{"yt-dlp"}, ExitCode: 1, Stderr: msg}
}

func TestClassify(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "invalid input", err: fmt.Errorf("%w: url is required", shared.ErrInvalidInput), want: KindInvalidInput},
		{name: "age prompt beats bot prompt", err: stderr("ERROR: Sign in to confirm your age. This video may be inappropriate for some users."), want: KindAgeRestricted},
		{name: "bot prompt", err: stderr("ERROR: Sign in to confirm you're not a bot"), want: KindBotDetection},
		{name: "private", err: stderr("ERROR: [youtube] x: Private video. Sign in if you've been granted access"), want: KindUnavailable},
		{name: "removed", err: stderr("ERROR: This video has been removed by the uploader"), want: KindUnavailable},
		{name: "timeout sentinel", err: &shared.CommandError{Err: fmt.Errorf("%w after 5m0s", shared.ErrTimeout)}, want: KindNetwork},
		{name: "deadline", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded), want: KindNetwork},
		{name: "connection reset", err: stderr("ERROR: Connection reset by peer"), want: KindNetwork},
		{name: "unsupported url", err: stderr("ERROR: Unsupported URL: https://example.com"), want: KindUnsupported},
		{name: "format", err: stderr("ERROR: Requested format is not available"), want: KindUnsupported},
		{name: "tool missing", err: fmt.Errorf("%w: tried 4 candidate(s)", shared.ErrToolNotFound), want: KindTool},
		{name: "metadata", err: fmt.Errorf("%w: empty output", shared.ErrMetadataUnavailable), want: KindMetadata},
		{name: "wrapped in exhaustion", err: &shared.StrategyExhaustedError{Attempts: []shared.AttemptError{
			{Strategy: "a", Err: stderr("ERROR: Connection refused")},
			{Strategy: "b", Err: stderr("ERROR: Video unavailable")},
		}}, want: KindUnavailable},
		{name: "unknown", err: errors.New("something odd"), want: KindInternal},
		{name: "empty file", err: fmt.Errorf("%w: x.mp4", shared.ErrEmptyOutputFile), want: KindInternal},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Kind != tt.want {
				t.Errorf("Classify() = %s, want %s", got.Kind, tt.want)
			}
			if got.Message == "" {
				t.Error("classification must carry a message")
			}
		})
	}

	t.Run("status codes", func(t *testing.T) {
		if got := Classify(shared.ErrInvalidInput).Status; got != http.StatusBadRequest {
			t.Errorf("expected 400 for input errors, got %d", got)
		}
		if got := Classify(stderr("Video unavailable")).Status; got != http.StatusInternalServerError {
			t.Errorf("expected 500 for pipeline errors, got %d", got)
		}
	})

	t.Run("never leaks diagnostics", func(t *testing.T) {
		secret := "/home/user/.cache/yt-dlp token=abc123"
		if got := Classify(stderr(secret)); got.Message == secret || got != Internal {
			t.Errorf("unexpected classification %+v", got)
		}
	})
}

func TestShouldFallback(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want bool
	}{
		{name: "sign in prompt", err: stderr("ERROR: Sign in to confirm you're not a bot"), want: true},
		{name: "bot keyword", err: stderr("HTTP Error 429: bot traffic detected"), want: true},
		{name: "age keyword", err: stderr("ERROR: This video is age restricted"), want: true},
		{name: "last attempt decides", err: &shared.StrategyExhaustedError{Attempts: []shared.AttemptError{
			{Strategy: "a", Err: stderr("Sign in to confirm you're not a bot")},
			{Strategy: "b", Err: stderr("ERROR: Requested format is not available")},
		}}, want: false},
		{name: "unavailable", err: stderr("ERROR: Video unavailable"), want: false},
		{name: "cancelled", err: fmt.Errorf("bot check: %w", context.Canceled), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldFallback(tt.err); got != tt.want {
				t.Errorf("ShouldFallback() = %v, want %v", got, tt.want)
			}
		})
	}
}
