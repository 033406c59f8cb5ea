// Package types provides shared type definitions used across fast3r packages.
// This package exists to break import cycles between the assistant, provider, and state packages.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"time"
)

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MediaKind describes how a message's MediaURL should be presented.
type MediaKind string

const (
	KindText  MediaKind = "text"
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// GroundingLink is a citation attached to an answer that used live-search grounding.
type GroundingLink struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Message is one turn in the conversation.
type Message struct {
	Role           Role            `json:"role"`
	Content        string          `json:"content"`
	Timestamp      time.Time       `json:"timestamp"`
	Kind           MediaKind       `json:"kind"`
	MediaURL       string          `json:"media_url,omitempty"`
	GroundingLinks []GroundingLink `json:"grounding_links,omitempty"`
}

// Validate reports whether the message satisfies the content/media invariant.
func (m Message) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if m.Content == "" && m.MediaURL == "" {
		return fmt.Errorf("message content may be empty only when media is attached")
	}
	return nil
}

// Clone returns a deep copy so callers never share the grounding slice.
func (m Message) Clone() Message {
	out := m
	if m.GroundingLinks != nil {
		out.GroundingLinks = make([]GroundingLink, len(m.GroundingLinks))
		copy(out.GroundingLinks, m.GroundingLinks)
	}
	return out
}

// =============================================================================
// CAPABILITIES
// =============================================================================

// Capability is one of the discrete services the assistant can perform.
type Capability string

const (
	CapabilityChat          Capability = "chat"
	CapabilityAnalyzeImage  Capability = "analyze_image"
	CapabilityGenerateImage Capability = "generate_image"
	CapabilityGenerateVideo Capability = "generate_video"
	CapabilityEditImage     Capability = "edit_image"
	CapabilityTranscribe    Capability = "transcribe"
)

// ImageSize is the output size tier for generated images.
type ImageSize string

const (
	ImageSize1K ImageSize = "1K"
	ImageSize2K ImageSize = "2K"
	ImageSize4K ImageSize = "4K"
)

// Valid reports whether s is a supported tier.
func (s ImageSize) Valid() bool {
	switch s {
	case ImageSize1K, ImageSize2K, ImageSize4K:
		return true
	}
	return false
}

// AspectRatio is the frame shape for generated video.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// Valid reports whether a is a supported ratio.
func (a AspectRatio) Valid() bool {
	return a == AspectLandscape || a == AspectPortrait
}

// Attachment is an uploaded image or recorded audio clip.
type Attachment struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether the attachment carries no bytes.
func (a *Attachment) Empty() bool {
	return a == nil || len(a.Data) == 0
}
