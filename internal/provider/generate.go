package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"fast3r/internal/logging"
	"fast3r/internal/media"
	"fast3r/internal/routing"
	"fast3r/internal/types"
)

// TranscribePrompt accompanies recorded audio.
const TranscribePrompt = "Transcribe this audio recording verbatim in its original language."

// =============================================================================
// TRANSCRIPTION
// =============================================================================

// Transcribe converts recorded audio into text. A response without text is
// an empty transcript, not an error.
func (g *Gateway) Transcribe(ctx context.Context, audio types.Attachment) (string, error) {
	if audio.Empty() {
		return "", types.NewError(types.KindRecordingUnavailable, "provider.Transcribe", errors.New("no audio captured"))
	}
	sel := g.policy.Select(types.CapabilityTranscribe, routing.Flags{})
	parts := []*genai.Part{
		genai.NewPartFromBytes(audio.Data, mimeOr(audio.MIMEType, "audio/webm")),
		genai.NewPartFromText(TranscribePrompt),
	}
	resp, err := g.generate(ctx, OpTranscribe, sel.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// =============================================================================
// IMAGES
// =============================================================================

// GenerateImage renders a square image at size and returns it as a data URI.
func (g *Gateway) GenerateImage(ctx context.Context, prompt string, size types.ImageSize) (string, error) {
	const op = "provider.GenerateImage"
	if !size.Valid() {
		return "", types.NewError(types.KindGenerationFailed, op, fmt.Errorf("unsupported image size %q", size))
	}
	sel := g.policy.Select(types.CapabilityGenerateImage, routing.Flags{})
	resp, err := g.generate(ctx, OpImage, sel.Model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{AspectRatio: "1:1", ImageSize: string(size)},
		})
	if err != nil {
		return "", err
	}
	blob := inlineMedia(resp)
	if blob == nil {
		return "", types.NewError(types.KindGenerationFailed, op, errors.New("response has no image"))
	}
	return media.EncodeDataURI(blob.Data, mimeOr(blob.MIMEType, "image/png")), nil
}

// EditImage applies prompt to image and returns the edited image as a data URI.
func (g *Gateway) EditImage(ctx context.Context, image types.Attachment, prompt string) (string, error) {
	const op = "provider.EditImage"
	if image.Empty() {
		return "", types.NewError(types.KindGenerationFailed, op, errors.New("no image to edit"))
	}
	sel := g.policy.Select(types.CapabilityEditImage, routing.Flags{HasAttachedImage: true})
	parts := []*genai.Part{
		genai.NewPartFromBytes(image.Data, mimeOr(image.MIMEType, "image/jpeg")),
		genai.NewPartFromText(prompt),
	}
	resp, err := g.generate(ctx, OpEdit, sel.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", err
	}
	blob := inlineMedia(resp)
	if blob == nil {
		return "", types.NewError(types.KindGenerationFailed, op, errors.New("response has no image"))
	}
	return media.EncodeDataURI(blob.Data, mimeOr(blob.MIMEType, "image/png")), nil
}

// =============================================================================
// VIDEO
// =============================================================================

// GenerateVideo submits a video generation, waits for it through the poller,
// and returns a local media handle.
func (g *Gateway) GenerateVideo(ctx context.Context, prompt string, aspect types.AspectRatio) (string, error) {
	const op = "provider.GenerateVideo"
	if !aspect.Valid() {
		return "", types.NewError(types.KindGenerationFailed, op, fmt.Errorf("unsupported aspect ratio %q", aspect))
	}
	sel := g.policy.Select(types.CapabilityGenerateVideo, routing.Flags{})

	start := time.Now()
	submitCtx, cancel := g.callContext(ctx)
	submitted, err := g.backend.GenerateVideos(submitCtx, sel.Model, prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     g.videoResolution,
		AspectRatio:    string(aspect),
	})
	cancel()
	logging.AuditWithSession(sessionOf(ctx)).LLMCall(OpVideo, sel.Model, 0, time.Since(start), err)
	if err != nil {
		return "", normalize(op, err)
	}
	if submitted == nil {
		return "", types.NewError(types.KindMalformedProviderResponse, op, errors.New("no operation returned"))
	}
	logging.Gateway("video operation %s submitted (model=%s aspect=%s)", submitted.Name, sel.Model, aspect)

	// The SDK operation is kept alongside the poller's view so each refresh
	// sends the provider what it returned last.
	current := submitted
	refresh := func(ctx context.Context, _ *media.Operation) (*media.Operation, error) {
		pollCtx, cancel := g.callContext(ctx)
		defer cancel()
		next, err := g.backend.GetVideosOperation(pollCtx, current)
		if err != nil {
			return nil, normalize(op, err)
		}
		if next == nil {
			return nil, types.NewError(types.KindMalformedProviderResponse, op, errors.New("empty operation"))
		}
		current = next
		return fromVideosOperation(next), nil
	}

	return g.poller.Await(ctx, fromVideosOperation(submitted), refresh)
}

// fromVideosOperation converts the SDK operation into the poller's model.
func fromVideosOperation(op *genai.GenerateVideosOperation) *media.Operation {
	out := &media.Operation{Name: op.Name, Done: op.Done}
	if !op.Done {
		return out
	}
	if len(op.Error) > 0 {
		out.Err = operationError(op.Error)
		return out
	}
	if op.Response == nil {
		return out
	}
	for _, gv := range op.Response.GeneratedVideos {
		if gv == nil || gv.Video == nil {
			continue
		}
		out.VideoURI = gv.Video.URI
		out.VideoBytes = gv.Video.VideoBytes
		out.MIMEType = gv.Video.MIMEType
		break
	}
	if out.VideoURI == "" && len(out.VideoBytes) == 0 && len(op.Response.RAIMediaFilteredReasons) > 0 {
		out.Err = fmt.Errorf("video filtered: %s", strings.Join(op.Response.RAIMediaFilteredReasons, "; "))
	}
	return out
}

func operationError(m map[string]any) error {
	if msg, ok := m["message"].(string); ok && msg != "" {
		return fmt.Errorf("operation failed: %s", msg)
	}
	return fmt.Errorf("operation failed: %v", m)
}
