// Package perception turns raw user input into a capability request.
// Classification is pure: no I/O, no provider calls, and exactly one
// capability per input.
package perception

import (
	"strings"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// Command tokens recognized at the start of an utterance.
const (
	CommandImage = "/image"
	CommandVideo = "/video"
	CommandEdit  = "/edit"
)

// Input is one user submission.
type Input struct {
	Text             string
	HasAttachedImage bool
	HasAttachedAudio bool
}

// Classification is the classifier's verdict.
type Classification struct {
	Capability types.Capability
	// Prompt is the text to forward to the provider. For command tokens it is
	// the trimmed remainder after the token; otherwise the trimmed input.
	Prompt string
}

// Classify picks the capability for in. First match wins:
//  1. audio attached            -> transcribe
//  2. "/image ..."              -> generate_image
//  3. "/video ..."              -> generate_video
//  4. "/edit ..." with an image -> edit_image
//  5. image attached            -> analyze_image
//  6. otherwise                 -> chat
func Classify(in Input) Classification {
	text := strings.TrimSpace(in.Text)

	var c Classification
	switch {
	case in.HasAttachedAudio:
		c = Classification{Capability: types.CapabilityTranscribe, Prompt: text}
	case hasCommand(text, CommandImage):
		c = Classification{Capability: types.CapabilityGenerateImage, Prompt: stripCommand(text, CommandImage)}
	case hasCommand(text, CommandVideo):
		c = Classification{Capability: types.CapabilityGenerateVideo, Prompt: stripCommand(text, CommandVideo)}
	case in.HasAttachedImage && hasCommand(text, CommandEdit):
		c = Classification{Capability: types.CapabilityEditImage, Prompt: stripCommand(text, CommandEdit)}
	case in.HasAttachedImage:
		c = Classification{Capability: types.CapabilityAnalyzeImage, Prompt: text}
	default:
		c = Classification{Capability: types.CapabilityChat, Prompt: text}
	}

	logging.PerceptionDebug("classified input len=%d image=%v audio=%v -> %s",
		len(text), in.HasAttachedImage, in.HasAttachedAudio, c.Capability)
	return c
}

// hasCommand reports whether text starts with token as a whole word, ignoring case.
// "/imagery" is not "/image".
func hasCommand(text, token string) bool {
	if len(text) < len(token) || !strings.EqualFold(text[:len(token)], token) {
		return false
	}
	if len(text) == len(token) {
		return true
	}
	switch text[len(token)] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func stripCommand(text, token string) string {
	return strings.TrimSpace(text[len(token):])
}
