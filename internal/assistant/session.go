// Package assistant runs one conversational session: it routes each user
// submission through classification, the provider gateway, and the
// conversation log, admitting one request at a time.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"fast3r/internal/conversation"
	"fast3r/internal/logging"
	"fast3r/internal/media"
	"fast3r/internal/perception"
	"fast3r/internal/provider"
	"fast3r/internal/types"
)

// Session errors. Neither touches the conversation log.
var (
	ErrBusy       = errors.New("assistant is busy with another request")
	ErrEmptyInput = errors.New("nothing to send")
)

// UploadDisplayText is shown as the user's message for an image upload.
const UploadDisplayText = "Analyze this image"

// Gateway is the provider surface a session drives.
type Gateway interface {
	Chat(ctx context.Context, text string, useExtendedReasoning bool, image *types.Attachment) (provider.ChatResult, error)
	Transcribe(ctx context.Context, audio types.Attachment) (string, error)
	GenerateImage(ctx context.Context, prompt string, size types.ImageSize) (string, error)
	EditImage(ctx context.Context, image types.Attachment, prompt string) (string, error)
	GenerateVideo(ctx context.Context, prompt string, aspect types.AspectRatio) (string, error)
}

// Request is one user submission.
type Request struct {
	Text                 string
	UseExtendedReasoning bool
	Image                *types.Attachment
}

// Options configures a Session.
type Options struct {
	ID          string
	Greeting    string
	ImageSize   types.ImageSize
	AspectRatio types.AspectRatio
	Sink        conversation.Sink
	Recorder    *Recorder
	// History restores an earlier conversation instead of greeting.
	History []types.Message
}

// Session is one user's conversation with the assistant.
type Session struct {
	id       string
	gateway  Gateway
	log      *conversation.Log
	inflight *semaphore.Weighted
	recorder *Recorder

	mu          sync.RWMutex
	imageSize   types.ImageSize
	aspectRatio types.AspectRatio
	turn        int
	closed      bool
}

// NewSession creates a session and seeds the greeting (or restores history).
func NewSession(gw Gateway, opts Options) (*Session, error) {
	id := opts.ID
	if id == "" {
		id = "sess_" + uuid.NewString()[:8]
	}
	var logOpts []conversation.Option
	if opts.Sink != nil {
		logOpts = append(logOpts, conversation.WithSink(opts.Sink))
	}

	s := &Session{
		id:          id,
		gateway:     gw,
		log:         conversation.NewLog(id, logOpts...),
		inflight:    semaphore.NewWeighted(1),
		recorder:    opts.Recorder,
		imageSize:   opts.ImageSize,
		aspectRatio: opts.AspectRatio,
	}
	if s.recorder == nil {
		s.recorder = NewRecorder(nil)
	}
	if !s.imageSize.Valid() {
		s.imageSize = types.ImageSize1K
	}
	if !s.aspectRatio.Valid() {
		s.aspectRatio = types.AspectLandscape
	}

	switch {
	case len(opts.History) > 0:
		if err := s.log.Restore(opts.History); err != nil {
			return nil, fmt.Errorf("restore session %s: %w", id, err)
		}
		logging.Session("session %s restored with %d messages", id, len(opts.History))
	case opts.Greeting != "":
		if err := s.log.Append(types.Message{Role: types.RoleAssistant, Content: opts.Greeting, Kind: types.KindText}); err != nil {
			return nil, err
		}
		logging.Session("session %s started", id)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []types.Message { return s.log.Current() }

// Log exposes the underlying conversation log.
func (s *Session) Log() *conversation.Log { return s.log }

// Recorder returns the session's recorder.
func (s *Session) Recorder() *Recorder { return s.recorder }

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	if s.inflight.TryAcquire(1) {
		s.inflight.Release(1)
		return false
	}
	return true
}

// ImageSize returns the size tier used for /image.
func (s *Session) ImageSize() types.ImageSize {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageSize
}

// SetImageSize changes the size tier used for /image.
func (s *Session) SetImageSize(size types.ImageSize) error {
	if !size.Valid() {
		return fmt.Errorf("invalid image size %q (valid: 1K, 2K, 4K)", size)
	}
	s.mu.Lock()
	s.imageSize = size
	s.mu.Unlock()
	return nil
}

// AspectRatio returns the frame shape used for /video.
func (s *Session) AspectRatio() types.AspectRatio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aspectRatio
}

// SetAspectRatio changes the frame shape used for /video.
func (s *Session) SetAspectRatio(a types.AspectRatio) error {
	if !a.Valid() {
		return fmt.Errorf("invalid aspect ratio %q (valid: 16:9, 9:16)", a)
	}
	s.mu.Lock()
	s.aspectRatio = a
	s.mu.Unlock()
	return nil
}

// Close ends the session: an active recording is discarded and Close waits
// for the in-flight request, if any, to return. Callers cancel that
// request's context first. Requests made after Close report ErrBusy.
func (s *Session) Close(ctx context.Context) error {
	s.recorder.Discard()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("session %s: request still in flight: %w", s.id, err)
	}

	s.mu.Lock()
	s.closed = true
	turns := s.turn
	s.mu.Unlock()
	logging.Session("session %s closed after %d turns", s.id, turns)
	return nil
}

// =============================================================================
// SEND
// =============================================================================

// Send appends the user's message, performs the classified capability, and
// appends exactly one assistant reply, which it returns. Provider failures
// become an apology reply rather than an error.
func (s *Session) Send(ctx context.Context, req Request) (types.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Image.Empty() {
		return types.Message{}, ErrEmptyInput
	}
	if !s.inflight.TryAcquire(1) {
		return types.Message{}, ErrBusy
	}
	defer s.inflight.Release(1)

	c := perception.Classify(perception.Input{Text: text, HasAttachedImage: !req.Image.Empty()})
	return s.run(ctx, c, req, text)
}

// UploadImage analyzes an uploaded image with the fixed analysis prompt.
// Any caption is appended to the prompt.
func (s *Session) UploadImage(ctx context.Context, image types.Attachment, caption string) (types.Message, error) {
	if image.Empty() {
		return types.Message{}, ErrEmptyInput
	}
	if !s.inflight.TryAcquire(1) {
		return types.Message{}, ErrBusy
	}
	defer s.inflight.Release(1)

	prompt := provider.AnalysisPrompt
	display := UploadDisplayText
	if caption = strings.TrimSpace(caption); caption != "" {
		prompt += "\n\n" + caption
		display = caption
	}
	c := perception.Classification{Capability: types.CapabilityAnalyzeImage, Prompt: prompt}
	return s.run(ctx, c, Request{Image: &image}, display)
}

func (s *Session) run(ctx context.Context, c perception.Classification, req Request, display string) (types.Message, error) {
	ctx = provider.WithSession(ctx, s.id)

	s.mu.Lock()
	s.turn++
	turn := s.turn
	size, aspect := s.imageSize, s.aspectRatio
	s.mu.Unlock()

	audit := logging.AuditWithSession(s.id)
	audit.TurnStart(turn, string(c.Capability))
	start := time.Now()

	user := types.Message{Role: types.RoleUser, Content: display, Kind: types.KindText}
	if !req.Image.Empty() {
		user.Kind = types.KindImage
		user.MediaURL = media.EncodeDataURI(req.Image.Data, req.Image.MIMEType)
	}
	if err := s.log.Append(user); err != nil {
		return types.Message{}, err
	}

	reply, err := s.perform(ctx, c, req, size, aspect)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("turn %d (%s) failed: %v", turn, c.Capability, err)
		reply = types.Message{Role: types.RoleAssistant, Content: apologyFor(c.Capability, err), Kind: types.KindText}
	} else if reply.Kind != types.KindText && reply.MediaURL == "" {
		logging.Get(logging.CategorySession).Warn("turn %d (%s) returned no media", turn, c.Capability)
		reply = types.Message{Role: types.RoleAssistant, Content: ApologyGeneration, Kind: types.KindText}
	} else if reply.Validate() != nil {
		// A reply with neither text nor media still answers the turn.
		logging.Get(logging.CategorySession).Warn("turn %d (%s) produced an empty reply", turn, c.Capability)
		reply = types.Message{Role: types.RoleAssistant, Content: provider.ChatFallbackText, Kind: types.KindText}
	}
	if err := s.log.Append(reply); err != nil {
		return types.Message{}, err
	}
	audit.TurnEnd(turn, time.Since(start), err == nil)
	return reply, nil
}

// perform dispatches one classified request to the gateway.
func (s *Session) perform(ctx context.Context, c perception.Classification, req Request, size types.ImageSize, aspect types.AspectRatio) (types.Message, error) {
	hint := func(text string) (types.Message, error) {
		return types.Message{Role: types.RoleAssistant, Content: text, Kind: types.KindText}, nil
	}

	switch c.Capability {
	case types.CapabilityGenerateImage:
		if c.Prompt == "" {
			return hint(HintEmptyImagePrompt)
		}
		uri, err := s.gateway.GenerateImage(ctx, c.Prompt, size)
		if err != nil {
			return types.Message{}, err
		}
		return types.Message{Role: types.RoleAssistant, Content: ReplyImageGenerated, Kind: types.KindImage, MediaURL: uri}, nil

	case types.CapabilityGenerateVideo:
		if c.Prompt == "" {
			return hint(HintEmptyVideoPrompt)
		}
		handle, err := s.gateway.GenerateVideo(ctx, c.Prompt, aspect)
		if err != nil {
			return types.Message{}, err
		}
		return types.Message{Role: types.RoleAssistant, Content: ReplyVideoGenerated, Kind: types.KindVideo, MediaURL: handle}, nil

	case types.CapabilityEditImage:
		if c.Prompt == "" {
			return hint(HintEmptyEditPrompt)
		}
		uri, err := s.gateway.EditImage(ctx, *req.Image, c.Prompt)
		if err != nil {
			return types.Message{}, err
		}
		return types.Message{Role: types.RoleAssistant, Content: ReplyImageEdited, Kind: types.KindImage, MediaURL: uri}, nil

	default:
		// chat and analyze_image
		prompt := c.Prompt
		if prompt == "" {
			prompt = provider.AnalysisPrompt
		}
		res, err := s.gateway.Chat(ctx, prompt, req.UseExtendedReasoning, req.Image)
		if err != nil {
			return types.Message{}, err
		}
		return types.Message{
			Role:           types.RoleAssistant,
			Content:        res.Text,
			Kind:           types.KindText,
			GroundingLinks: res.GroundingLinks,
		}, nil
	}
}

// =============================================================================
// PUSH-TO-TALK
// =============================================================================

// StartRecording begins audio capture.
func (s *Session) StartRecording(ctx context.Context) error {
	return s.recorder.Start(ctx)
}

// StopRecording ends capture and transcribes it. The transcript is returned
// as draft input for the user to edit and send; nothing is appended.
func (s *Session) StopRecording(ctx context.Context) (string, error) {
	audio, err := s.recorder.Stop()
	if err != nil {
		return "", err
	}
	return s.Transcribe(ctx, audio)
}

// Transcribe turns recorded audio into draft input text.
func (s *Session) Transcribe(ctx context.Context, audio types.Attachment) (string, error) {
	if !s.inflight.TryAcquire(1) {
		return "", ErrBusy
	}
	defer s.inflight.Release(1)

	c := perception.Classify(perception.Input{HasAttachedAudio: true})
	logging.SessionDebug("session %s: %s %d bytes", s.id, c.Capability, len(audio.Data))
	return s.gateway.Transcribe(provider.WithSession(ctx, s.id), audio)
}
