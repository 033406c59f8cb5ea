package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// AdviceFallbackExplanation accompanies the default settings whenever advice
// could not be obtained.
const AdviceFallbackExplanation = "Using the default settings because recommendations could not be generated."

// adviceResponse is the structured payload the advice model must return.
type adviceResponse struct {
	Settings    types.JobSettings `json:"settings"`
	Explanation string            `json:"explanation"`
}

// AdviceSchema constrains the advice response to the known setting enumerations.
func AdviceSchema() *genai.Schema {
	enum := func(values []string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Enum: values}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"settings": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"resolution":       enum(types.Resolutions),
					"mode":             enum(types.Modes),
					"cameraIntrinsics": enum(types.Intrinsics),
					"optimization":     enum(types.Optimizations),
				},
				Required: []string{"resolution", "mode", "cameraIntrinsics", "optimization"},
			},
			"explanation": {Type: genai.TypeString},
		},
		Required: []string{"settings", "explanation"},
	}
}

// RequestAdvice asks for recommended reconstruction settings for imageCount
// photos of subjectLabel. It never fails: any transport error, empty or
// unparseable body, or out-of-range value yields the default settings and
// the fallback explanation.
func (g *Gateway) RequestAdvice(ctx context.Context, imageCount int, subjectLabel string) (types.JobSettings, string) {
	settings, explanation, err := g.requestAdvice(ctx, imageCount, subjectLabel)
	if err != nil {
		logging.GatewayWarn("advice fell back to defaults: %v", err)
		return types.DefaultJobSettings(), AdviceFallbackExplanation
	}
	return settings, explanation
}

func (g *Gateway) requestAdvice(ctx context.Context, imageCount int, subjectLabel string) (types.JobSettings, string, error) {
	prompt := fmt.Sprintf(
		"Recommend Fast3R reconstruction settings for %d photos of %q. Explain the choice in one or two sentences.",
		imageCount, subjectLabel)

	resp, err := g.generate(ctx, OpAdvice, g.policy.AdviceModel(),
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   AdviceSchema(),
		})
	if err != nil {
		return types.JobSettings{}, "", err
	}
	return ParseAdvice(responseText(resp))
}

// ParseAdvice validates a raw advice payload at the boundary.
func ParseAdvice(raw string) (types.JobSettings, string, error) {
	const op = "provider.ParseAdvice"
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.JobSettings{}, "", types.NewError(types.KindMalformedProviderResponse, op, fmt.Errorf("empty advice"))
	}
	var out adviceResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return types.JobSettings{}, "", types.NewError(types.KindMalformedProviderResponse, op, err)
	}
	if err := out.Settings.Validate(); err != nil {
		return types.JobSettings{}, "", types.NewError(types.KindMalformedProviderResponse, op, err)
	}
	explanation := strings.TrimSpace(out.Explanation)
	if explanation == "" {
		return types.JobSettings{}, "", types.NewError(types.KindMalformedProviderResponse, op, fmt.Errorf("advice has no explanation"))
	}
	return out.Settings, explanation, nil
}
