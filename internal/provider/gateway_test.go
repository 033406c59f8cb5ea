package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/genai"

	"fast3r/internal/config"
	"fast3r/internal/media"
	"fast3r/internal/routing"
	"fast3r/internal/types"
	"fast3r/internal/usage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// =============================================================================
// ADVICE
// =============================================================================

func TestRequestAdvice_Parses(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse(
		`{"settings":{"resolution":"2048","mode":"mesh","cameraIntrinsics":"manual","optimization":"speed"},"explanation":"Many views allow a dense mesh."}`,
	)}}
	g := newTestGateway(t, b, false)

	settings, explanation := g.RequestAdvice(context.Background(), 40, "Car")
	assert.Equal(t, types.JobSettings{
		Resolution: types.Resolution2048, Mode: types.ModeMesh,
		CameraIntrinsics: types.IntrinsicsManual, Optimization: types.OptimizeSpeed,
	}, settings)
	assert.Equal(t, "Many views allow a dense mesh.", explanation)

	call := b.lastCall()
	assert.Equal(t, "gemini-3-flash-preview", call.Model)
	require.NotNil(t, call.Config)
	assert.Equal(t, "application/json", call.Config.ResponseMIMEType)
	require.NotNil(t, call.Config.ResponseSchema)
	assert.ElementsMatch(t, []string{"settings", "explanation"}, call.Config.ResponseSchema.Required)
	assert.Contains(t, call.Contents[0].Parts[0].Text, "40 photos")
}

func TestRequestAdvice_FallsBack(t *testing.T) {
	cases := map[string]*fakeBackend{
		"not json":     {responses: []*genai.GenerateContentResponse{textResponse("not json")}},
		"empty":        {responses: []*genai.GenerateContentResponse{{}}},
		"out of enum":  {responses: []*genai.GenerateContentResponse{textResponse(`{"settings":{"resolution":"4096","mode":"mesh","cameraIntrinsics":"auto","optimization":"speed"},"explanation":"x"}`)}},
		"no settings":  {responses: []*genai.GenerateContentResponse{textResponse(`{"explanation":"x"}`)}},
		"transport":    {errs: []error{errors.New("connection reset")}},
		"unauthorized": {errs: []error{genai.APIError{Code: http.StatusUnauthorized, Message: "bad key"}}},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			g := newTestGateway(t, b, false)
			settings, explanation := g.RequestAdvice(context.Background(), 5, "Car")
			assert.Equal(t, types.DefaultJobSettings(), settings)
			assert.Equal(t, AdviceFallbackExplanation, explanation)
			assert.NotEmpty(t, explanation)
		})
	}
}

func TestParseAdvice_ValidatesExplanation(t *testing.T) {
	_, _, err := ParseAdvice(`{"settings":{"resolution":"512","mode":"pointcloud","cameraIntrinsics":"auto","optimization":"quality"},"explanation":"  "}`)
	assert.ErrorIs(t, err, types.ErrMalformedProviderResponse)
}

// =============================================================================
// CHAT
// =============================================================================

func groundedResponse(text string, chunks ...*genai.GroundingChunk) *genai.GenerateContentResponse {
	resp := textResponse(text)
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: chunks}
	return resp
}

func webChunk(uri, title string) *genai.GroundingChunk {
	return &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{URI: uri, Title: title}}
}

func TestChat_LiveInfoEnablesSearchAndLinks(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{groundedResponse("It is sunny.",
		webChunk("https://a.example", "A"),
		webChunk("", "no uri"),
		&genai.GroundingChunk{},
		webChunk("https://b.example", "B"),
	)}}
	g := newTestGateway(t, b, true)

	res, err := g.Chat(context.Background(), "weather today", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", res.Text)
	assert.Equal(t, routing.RuleLiveInfo, res.Selection.Rule)
	assert.Equal(t, []types.GroundingLink{
		{URI: "https://a.example", Title: "A"},
		{URI: "https://b.example", Title: "B"},
	}, res.GroundingLinks)

	call := b.lastCall()
	assert.Equal(t, "gemini-3-flash-preview", call.Model)
	require.Len(t, call.Config.Tools, 1)
	assert.NotNil(t, call.Config.Tools[0].GoogleSearch)
	assert.Nil(t, call.Config.ThinkingConfig)
	assert.Equal(t, "be helpful", call.Config.SystemInstruction.Parts[0].Text)
}

func TestChat_NoLinksWithoutSearch(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{groundedResponse("hi", webChunk("https://a.example", "A"))}}
	g := newTestGateway(t, b, false)

	res, err := g.Chat(context.Background(), "hello", false, nil)
	require.NoError(t, err)
	assert.Empty(t, res.GroundingLinks)
	assert.Equal(t, "gemini-2.5-flash-lite", b.lastCall().Model)
	assert.Empty(t, b.lastCall().Config.Tools)
}

func TestChat_ExtendedReasoningSetsBudget(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("deep")}}
	g := newTestGateway(t, b, true)

	res, err := g.Chat(context.Background(), "news today, explain", true, nil)
	require.NoError(t, err)
	assert.Equal(t, routing.RuleExtendedReasoning, res.Selection.Rule)

	call := b.lastCall()
	assert.Equal(t, "gemini-3-pro-preview", call.Model)
	require.NotNil(t, call.Config.ThinkingConfig)
	assert.Equal(t, int32(32768), *call.Config.ThinkingConfig.ThinkingBudget)
	assert.Empty(t, call.Config.Tools)
}

func TestChat_AttachedImage(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("a car")}}
	g := newTestGateway(t, b, false)

	res, err := g.Chat(context.Background(), AnalysisPrompt, false, &types.Attachment{Data: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	assert.Equal(t, routing.RuleAttachedImage, res.Selection.Rule)

	parts := b.lastCall().Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
}

func TestChat_EmptyTextFallsBack(t *testing.T) {
	thought := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "thinking...", Thought: true}}},
	}}}
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{thought}}
	g := newTestGateway(t, b, false)

	res, err := g.Chat(context.Background(), "hello", false, nil)
	require.NoError(t, err)
	assert.Equal(t, ChatFallbackText, res.Text)
}

func TestChat_RetriesRateLimit(t *testing.T) {
	b := &fakeBackend{
		errs:      []error{genai.APIError{Code: http.StatusTooManyRequests}, nil},
		responses: []*genai.GenerateContentResponse{nil, textResponse("ok")},
	}
	g := newTestGateway(t, b, false)

	res, err := g.Chat(context.Background(), "hello", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Len(t, b.calls, 2)
}

func TestChat_ErrorsNormalized(t *testing.T) {
	b := &fakeBackend{errs: []error{
		genai.APIError{Code: http.StatusServiceUnavailable},
		genai.APIError{Code: http.StatusServiceUnavailable},
		genai.APIError{Code: http.StatusServiceUnavailable},
	}}
	g := newTestGateway(t, b, false)

	_, err := g.Chat(context.Background(), "hello", false, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrProviderUnavailable)
	var apiErr genai.APIError
	assert.False(t, errors.As(err, &apiErr), "SDK error shape must not leak")
	assert.Len(t, b.calls, 3)
}

func TestChat_TracksUsage(t *testing.T) {
	tracker, err := usage.NewTracker("")
	require.NoError(t, err)
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("hi")}}
	g := newTestGateway(t, b, false)
	g.usage = tracker

	_, err = g.Chat(WithSession(context.Background(), "s1"), "hello", false, nil)
	require.NoError(t, err)
	stats := tracker.Stats()
	assert.Equal(t, int64(7), stats.ByOperation[OpChat].Total)
	assert.Equal(t, int64(1), stats.BySession["s1"].Calls)
}

// =============================================================================
// TRANSCRIBE / IMAGES
// =============================================================================

func TestTranscribe(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse(" hello world ")}}
	g := newTestGateway(t, b, false)

	text, err := g.Transcribe(context.Background(), types.Attachment{Data: []byte("webm")})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	parts := b.lastCall().Contents[0].Parts
	assert.Equal(t, "audio/webm", parts[0].InlineData.MIMEType)
	assert.Equal(t, TranscribePrompt, parts[1].Text)
}

func TestTranscribe_EmptyResultIsNotError(t *testing.T) {
	g := newTestGateway(t, &fakeBackend{}, false)
	text, err := g.Transcribe(context.Background(), types.Attachment{Data: []byte("webm")})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTranscribe_NoAudio(t *testing.T) {
	g := newTestGateway(t, &fakeBackend{}, false)
	_, err := g.Transcribe(context.Background(), types.Attachment{})
	assert.ErrorIs(t, err, types.ErrRecordingUnavailable)
}

func TestGenerateImage(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{imageResponse([]byte("png"), "image/png")}}
	g := newTestGateway(t, b, false)

	uri, err := g.GenerateImage(context.Background(), "a red cube", types.ImageSize2K)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5n", uri)

	call := b.lastCall()
	assert.Equal(t, "gemini-3-pro-image-preview", call.Model)
	assert.Equal(t, "1:1", call.Config.ImageConfig.AspectRatio)
	assert.Equal(t, "2K", call.Config.ImageConfig.ImageSize)
}

func TestGenerateImage_NoInlineMedia(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("I cannot draw that")}}
	g := newTestGateway(t, b, false)

	_, err := g.GenerateImage(context.Background(), "x", types.ImageSize1K)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)
}

func TestGenerateImage_BadSize(t *testing.T) {
	b := &fakeBackend{}
	g := newTestGateway(t, b, false)
	_, err := g.GenerateImage(context.Background(), "x", types.ImageSize("8K"))
	assert.ErrorIs(t, err, types.ErrGenerationFailed)
	assert.Empty(t, b.calls)
}

func TestEditImage(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{imageResponse([]byte("new"), "")}}
	g := newTestGateway(t, b, false)

	uri, err := g.EditImage(context.Background(), types.Attachment{Data: []byte("old"), MIMEType: "image/png"}, "make it blue")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	call := b.lastCall()
	assert.Equal(t, "gemini-2.5-flash-image", call.Model)
	assert.Equal(t, "image/png", call.Contents[0].Parts[0].InlineData.MIMEType)
	assert.Equal(t, "make it blue", call.Contents[0].Parts[1].Text)
}

// =============================================================================
// VIDEO
// =============================================================================

func doneVideo(uri string) *genai.GenerateVideosOperation {
	return &genai.GenerateVideosOperation{
		Name: "operations/v1",
		Done: true,
		Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{URI: uri}}},
		},
	}
}

func TestGenerateVideo_PollsAndResolves(t *testing.T) {
	pending := &genai.GenerateVideosOperation{Name: "operations/v1"}
	b := &fakeBackend{
		submitted: pending,
		polls:     []*genai.GenerateVideosOperation{pending, doneVideo("https://files.example/v?alt=media")},
	}
	g := newTestGateway(t, b, false)

	handle, err := g.GenerateVideo(context.Background(), "a drone shot", types.AspectPortrait)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(handle, media.HandleScheme))
	assert.Equal(t, 2, b.pollCalls)
	assert.Equal(t, "a drone shot", b.videoPrompt)
	assert.Equal(t, "9:16", b.videoConfig.AspectRatio)
	assert.Equal(t, "720p", b.videoConfig.Resolution)
	assert.Equal(t, int32(1), b.videoConfig.NumberOfVideos)

	blob, ok := g.Media().Open(handle)
	require.True(t, ok)
	assert.Equal(t, []byte("mp4"), blob.Data)
}

func TestGenerateVideo_OperationError(t *testing.T) {
	b := &fakeBackend{
		submitted: &genai.GenerateVideosOperation{Name: "operations/v1"},
		polls: []*genai.GenerateVideosOperation{{
			Name: "operations/v1", Done: true, Error: map[string]any{"message": "blocked"},
		}},
	}
	g := newTestGateway(t, b, false)

	_, err := g.GenerateVideo(context.Background(), "x", types.AspectLandscape)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)
}

func TestGenerateVideo_StalledStatusFetchTimesOut(t *testing.T) {
	b := &fakeBackend{submitted: &genai.GenerateVideosOperation{Name: "operations/v1"}, stallPolls: true}
	cfg := DefaultConfig("test-key")
	cfg.Timeout = 50 * time.Millisecond
	g := NewGateway(b, GatewayConfig{
		Provider: cfg,
		Policy:   routing.NewPolicy(config.DefaultModels(), 32768),
		Poller:   media.NewPoller(media.PollerConfig{Interval: time.Millisecond, Timeout: time.Minute}),
	})

	start := time.Now()
	_, err := g.GenerateVideo(context.Background(), "x", types.AspectLandscape)
	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, b.pollCalls)
}

func TestGenerateVideo_PollDeadlineBoundsStatusFetch(t *testing.T) {
	b := &fakeBackend{submitted: &genai.GenerateVideosOperation{Name: "operations/v1"}, stallPolls: true}
	cfg := DefaultConfig("test-key")
	cfg.Timeout = time.Hour
	g := NewGateway(b, GatewayConfig{
		Provider: cfg,
		Policy:   routing.NewPolicy(config.DefaultModels(), 32768),
		Poller:   media.NewPoller(media.PollerConfig{Interval: time.Millisecond, Timeout: 50 * time.Millisecond}),
	})

	start := time.Now()
	_, err := g.GenerateVideo(context.Background(), "x", types.AspectLandscape)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGenerateVideo_SubmitError(t *testing.T) {
	b := &fakeBackend{submitErr: genai.APIError{Code: http.StatusForbidden}}
	g := newTestGateway(t, b, false)

	_, err := g.GenerateVideo(context.Background(), "x", types.AspectLandscape)
	assert.ErrorIs(t, err, types.ErrProviderUnavailable)
}

func TestFromVideosOperation_Filtered(t *testing.T) {
	op := fromVideosOperation(&genai.GenerateVideosOperation{
		Done:     true,
		Response: &genai.GenerateVideosResponse{RAIMediaFilteredReasons: []string{"unsafe"}},
	})
	require.Error(t, op.Err)
	assert.Contains(t, op.Err.Error(), "unsafe")
}

// =============================================================================
// ERRORS
// =============================================================================

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"unauthorized", genai.APIError{Code: 401}, types.KindProviderUnavailable},
		{"forbidden pointer", &genai.APIError{Code: 403}, types.KindProviderUnavailable},
		{"quota", genai.APIError{Code: 429}, types.KindProviderUnavailable},
		{"server", genai.APIError{Code: 500}, types.KindProviderUnavailable},
		{"bad request", genai.APIError{Code: 400}, types.KindGenerationFailed},
		{"deadline", context.DeadlineExceeded, types.KindTimeout},
		{"transport", errors.New("dial tcp"), types.KindProviderUnavailable},
		{"already typed", types.NewError(types.KindGenerationFailed, "x", nil), types.KindGenerationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, types.KindOf(normalize("op", tc.err)))
		})
	}
	assert.ErrorIs(t, normalize("op", context.Canceled), context.Canceled)
	assert.NoError(t, normalize("op", nil))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig("k").Validate())
	assert.Error(t, DefaultConfig("").Validate())
	bad := DefaultConfig("k")
	bad.MaxRetries = -1
	assert.Error(t, bad.Validate())
}
