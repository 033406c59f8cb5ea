package assistant

import (
	"context"
	"errors"

	"fast3r/internal/types"
)

// Fixed user-facing texts. Failures never leave the conversation in an
// error state; they become one of these assistant messages instead.
const (
	ApologyGeneric       = "Sorry, something went wrong while processing your request."
	ApologyUnavailable   = "Sorry, the AI service is unavailable right now. Please try again shortly."
	ApologyGeneration    = "Sorry, I could not generate that. Try rephrasing your prompt."
	ApologyTimeout       = "Sorry, generation took too long and was stopped."
	ApologyImageAnalysis = "Sorry, image analysis failed."
	ApologyCancelled     = "The request was cancelled."

	HintEmptyImagePrompt = "Describe the image after /image, for example: /image a red cube on a marble table."
	HintEmptyVideoPrompt = "Describe the video after /video, for example: /video a drone orbiting a lighthouse."
	HintEmptyEditPrompt  = "Describe the change after /edit, for example: /edit make the background white."

	ReplyImageGenerated = "Image generated:"
	ReplyImageEdited    = "Image edited:"
	ReplyVideoGenerated = "Video generated:"
)

// apologyFor maps a failed request to its user-facing text.
func apologyFor(capability types.Capability, err error) string {
	if errors.Is(err, context.Canceled) {
		return ApologyCancelled
	}
	switch types.KindOf(err) {
	case types.KindTimeout:
		return ApologyTimeout
	case types.KindGenerationFailed:
		return ApologyGeneration
	case types.KindProviderUnavailable:
		if capability == types.CapabilityAnalyzeImage {
			return ApologyImageAnalysis
		}
		return ApologyUnavailable
	}
	if capability == types.CapabilityAnalyzeImage {
		return ApologyImageAnalysis
	}
	return ApologyGeneric
}
