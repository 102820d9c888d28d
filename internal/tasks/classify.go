package tasks

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/desertthunder/vidproxy/internal/shared"
)

// Kind names a failure class in the client-facing contract.
type Kind string

const (
	KindInvalidInput  Kind = "invalid_input"
	KindAgeRestricted Kind = "age_restricted"
	KindBotDetection  Kind = "bot_detection"
	KindUnavailable   Kind = "unavailable"
	KindNetwork       Kind = "network"
	KindUnsupported   Kind = "unsupported"
	KindTool          Kind = "tool"
	KindMetadata      Kind = "metadata"
	KindInternal      Kind = "internal"
)

// Classification is the stable, client-safe description of a failure.
type Classification struct {
	Kind    Kind
	Status  int
	Message string
}

// Matcher reports whether err belongs to a class. msg is the lower-cased root message.
type Matcher func(err error, msg string) bool

type rule struct {
	match Matcher
	class Classification
}

func containsAny(subs ...string) Matcher {
	return func(_ error, msg string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
}

func is(targets ...error) Matcher {
	return func(err error, _ string) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

func either(ms ...Matcher) Matcher {
	return func(err error, msg string) bool {
		for _, m := range ms {
			if m(err, msg) {
				return true
			}
		}
		return false
	}
}

// Internal is returned for anything no rule recognizes.
var Internal = Classification{
	Kind:    KindInternal,
	Status:  http.StatusInternalServerError,
	Message: "Failed to download video. Please try again.",
}

// rules are evaluated in order. Age gating precedes bot detection because the host's age
// prompt also begins "Sign in to confirm", and format errors precede availability because
// both say "is not available".
var rules = []rule{
	{
		match: is(shared.ErrInvalidInput, shared.ErrMissingArgument, shared.ErrInvalidArgument),
		class: Classification{KindInvalidInput, http.StatusBadRequest, "Invalid request."},
	},
	{
		match: containsAny("confirm your age", "age-restricted", "age restricted", "inappropriate for some users"),
		class: Classification{KindAgeRestricted, http.StatusInternalServerError,
			"This video is age-restricted and could not be downloaded."},
	},
	{
		match: containsAny("sign in to confirm", "not a bot", "bot"),
		class: Classification{KindBotDetection, http.StatusInternalServerError,
			"The video host is blocking automated downloads right now. Please try again later."},
	},
	{
		match: containsAny("unsupported url", "requested format is not available", "no video formats"),
		class: Classification{KindUnsupported, http.StatusInternalServerError,
			"This video or format is not supported."},
	},
	{
		match: containsAny("video unavailable", "private video", "this video is private", "has been removed",
			"is not available", "no longer available", "has been terminated"),
		class: Classification{KindUnavailable, http.StatusInternalServerError,
			"This video is unavailable. It may be private or removed."},
	},
	{
		match: either(
			is(shared.ErrTimeout, context.DeadlineExceeded),
			containsAny("timed out", "timeout", "network", "connection", "unable to download webpage", "temporary failure"),
		),
		class: Classification{KindNetwork, http.StatusInternalServerError,
			"A network error or timeout interrupted the download. Please try again."},
	},
	{
		match: either(is(shared.ErrToolNotFound), containsAny("executable file not found", "no such file or directory")),
		class: Classification{KindTool, http.StatusInternalServerError,
			"The download service is not available right now."},
	},
	{
		match: is(shared.ErrMetadataUnavailable),
		class: Classification{KindMetadata, http.StatusInternalServerError,
			"Could not read information for this video."},
	},
}

// Classify maps err to the first matching classification, or [Internal].
func Classify(err error) Classification {
	if err == nil {
		return Internal
	}
	msg := strings.ToLower(shared.RootMessage(err))
	for _, r := range rules {
		if r.match(err, msg) {
			return r.class
		}
	}
	return Internal
}

// fallbackSignatures trigger the one-shot reroute to the fallback provider.
var fallbackSignatures = []string{"Sign in to confirm", "bot", "age"}

// ShouldFallback reports whether err's root message carries a bot-detection or
// age-restriction signature.
func ShouldFallback(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	msg := shared.RootMessage(err)
	for _, sig := range fallbackSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
