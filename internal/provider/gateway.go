package provider

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"

	"fast3r/internal/logging"
	"fast3r/internal/media"
	"fast3r/internal/perception"
	"fast3r/internal/routing"
	"fast3r/internal/usage"
)

// Operation names used for usage accounting and audit events.
const (
	OpAdvice     = "advice"
	OpChat       = "chat"
	OpTranscribe = "transcribe"
	OpImage      = "image"
	OpEdit       = "edit"
	OpVideo      = "video"
)

// GatewayConfig wires a Gateway.
type GatewayConfig struct {
	Provider          Config
	Policy            *routing.Policy
	LiveInfo          perception.LiveInfoDetector
	Poller            *media.Poller
	Usage             *usage.Tracker
	SystemInstruction string
	VideoResolution   string
}

// Gateway issues provider requests for every assistant capability and
// normalizes their results and failures.
type Gateway struct {
	backend           Backend
	cfg               Config
	policy            *routing.Policy
	liveInfo          perception.LiveInfoDetector
	poller            *media.Poller
	usage             *usage.Tracker
	systemInstruction string
	videoResolution   string
}

// NewGateway creates a gateway over backend.
func NewGateway(backend Backend, gc GatewayConfig) *Gateway {
	g := &Gateway{
		backend:           backend,
		cfg:               gc.Provider,
		policy:            gc.Policy,
		liveInfo:          gc.LiveInfo,
		poller:            gc.Poller,
		usage:             gc.Usage,
		systemInstruction: gc.SystemInstruction,
		videoResolution:   gc.VideoResolution,
	}
	if g.liveInfo == nil {
		g.liveInfo = perception.DetectorFunc(func(string) bool { return false })
	}
	if g.poller == nil {
		g.poller = media.NewPoller(media.PollerConfig{Fetcher: media.NewHTTPFetcher(gc.Provider.APIKey, nil)})
	}
	if g.videoResolution == "" {
		g.videoResolution = "720p"
	}
	return g
}

// Policy returns the model selection policy in use.
func (g *Gateway) Policy() *routing.Policy { return g.policy }

// Media returns the store holding resolved video handles.
func (g *Gateway) Media() *media.Store { return g.poller.Store() }

// generate performs one GenerateContent call with the gateway's timeout,
// bounded retries on transient failures, usage accounting, and auditing.
func (g *Gateway) generate(ctx context.Context, op, model string, contents []*genai.Content, gcfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	start := time.Now()
	logging.GatewayDebug("%s: model=%s contents=%d", op, model, len(contents))

	var resp *genai.GenerateContentResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = g.backend.GenerateContent(ctx, model, contents, gcfg)
		if err == nil || !retryable(err) || attempt >= g.cfg.MaxRetries {
			break
		}
		delay := g.cfg.RetryBackoff * time.Duration(1<<uint(attempt))
		logging.GatewayWarn("%s: retrying after %v (attempt %d): %v", op, delay, attempt+1, err)
		if !sleepCtx(ctx, delay) {
			break
		}
	}

	tokens := g.track(ctx, op, model, resp)
	logging.AuditWithSession(sessionOf(ctx)).LLMCall(op, model, tokens, time.Since(start), err)
	if err != nil {
		return nil, normalize(op, err)
	}
	return resp, nil
}

// callContext bounds a single provider call by the configured timeout.
// An earlier caller deadline still wins.
func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.cfg.Timeout)
}

func (g *Gateway) track(ctx context.Context, op, model string, resp *genai.GenerateContentResponse) int {
	if resp == nil || resp.UsageMetadata == nil {
		return 0
	}
	um := resp.UsageMetadata
	in, out, think := int(um.PromptTokenCount), int(um.CandidatesTokenCount), int(um.ThoughtsTokenCount)
	tracker := g.usage
	if tracker == nil {
		tracker = usage.FromContext(ctx)
	}
	if tracker != nil {
		tracker.Track(ctx, model, op, in, out, think)
	}
	return in + out + think
}

// responseText joins the first candidate's non-thought text parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

// inlineMedia returns the first inline data part of the first candidate.
func inlineMedia(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type sessionCtxKey struct{}

// WithSession tags ctx with an assistant session ID for usage and audit records.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return usage.WithSession(context.WithValue(ctx, sessionCtxKey{}, sessionID), sessionID)
}

func sessionOf(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}
