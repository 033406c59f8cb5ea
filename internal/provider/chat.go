package provider

import (
	"context"

	"google.golang.org/genai"

	"fast3r/internal/routing"
	"fast3r/internal/types"
)

// ChatFallbackText is returned when the provider answers with no text.
const ChatFallbackText = "Sorry, I could not process that request."

// AnalysisPrompt is sent with an uploaded image when the user gives no text.
const AnalysisPrompt = "Analyze this image for 3D reconstruction: describe the subject, texture, lighting, and whether more viewpoints are needed."

// ChatResult is one assistant answer.
type ChatResult struct {
	Text           string
	GroundingLinks []types.GroundingLink
	Selection      routing.Selection
}

// Chat answers text, optionally about an attached image. The model and
// request shape come from the selection policy.
func (g *Gateway) Chat(ctx context.Context, text string, useExtendedReasoning bool, image *types.Attachment) (ChatResult, error) {
	hasImage := !image.Empty()
	capability := types.CapabilityChat
	if hasImage {
		capability = types.CapabilityAnalyzeImage
	}
	sel := g.policy.Select(capability, routing.Flags{
		UseExtendedReasoning: useExtendedReasoning,
		HasAttachedImage:     hasImage,
		NeedsLiveInfo:        g.liveInfo.NeedsLiveInfo(text),
	})

	parts := []*genai.Part{genai.NewPartFromText(text)}
	if hasImage {
		parts = append(parts, genai.NewPartFromBytes(image.Data, mimeOr(image.MIMEType, "image/jpeg")))
	}

	resp, err := g.generate(ctx, OpChat, sel.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		g.chatConfig(sel))
	if err != nil {
		return ChatResult{Selection: sel}, err
	}

	result := ChatResult{Text: responseText(resp), Selection: sel}
	if result.Text == "" {
		result.Text = ChatFallbackText
	}
	if sel.EnableSearch {
		result.GroundingLinks = groundingLinks(resp)
	}
	return result, nil
}

func (g *Gateway) chatConfig(sel routing.Selection) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if g.systemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.systemInstruction, genai.RoleUser)
	}
	if sel.EnableSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if sel.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(sel.ThinkingBudget)}
	}
	return cfg
}

// groundingLinks extracts web sources in provider order, skipping entries
// without a URI.
func groundingLinks(resp *genai.GenerateContentResponse) []types.GroundingLink {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	var links []types.GroundingLink
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		links = append(links, types.GroundingLink{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return links
}

func mimeOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
