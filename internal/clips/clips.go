// Package clips records the outcome of every accepted clip trigger and
// forwards it to a clip service when one is wired in. The attempt history
// survives restarts and feeds the analytics served on the stats endpoint.
package clips

import (
	"context"
	"strings"
	"time"

	"github.com/LordBoos/smartclip/internal/detect"
)

// titleBudget is the maximum clip title length imposed by the clip
// services this feeds.
const titleBudget = 100

// titleTag is inserted between the stream title and the trigger.
const titleTag = " - SmartClip - "

// Requester creates a clip at a remote clip service. Implementations
// handle their own authentication and retries.
type Requester interface {
	// CreateClip requests a clip with the given title and returns its URL.
	CreateClip(ctx context.Context, title string) (url string, err error)
}

// Attempt is one recorded clip attempt.
type Attempt struct {
	Timestamp  time.Time   `json:"timestamp"`
	Detector   detect.Kind `json:"detector"`
	Trigger    string      `json:"trigger"`
	Confidence float64     `json:"confidence"`
	Title      string      `json:"title"`
	Success    bool        `json:"success"`
	URL        string      `json:"url,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// BuildTitle composes a clip title from the stream title and the trigger,
// keeping the result within the title budget by truncating the stream
// title first.
func BuildTitle(streamTitle, trigger string) string {
	suffix := titleTag + trigger
	stream := []rune(strings.TrimSpace(streamTitle))

	budget := titleBudget - len([]rune(suffix))
	if budget <= 0 {
		// Trigger alone busts the budget; keep as much of it as fits.
		full := []rune(strings.TrimPrefix(suffix, " - "))
		if len(full) > titleBudget {
			full = full[:titleBudget]
		}
		return string(full)
	}
	if len(stream) > budget {
		stream = stream[:budget]
	}
	return string(stream) + suffix
}
