package provider

import (
	"context"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"fast3r/internal/config"
	"fast3r/internal/media"
	"fast3r/internal/perception"
	"fast3r/internal/routing"
)

type contentCall struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// fakeBackend replays canned responses and records requests.
type fakeBackend struct {
	mu sync.Mutex

	responses []*genai.GenerateContentResponse
	errs      []error
	calls     []contentCall

	submitted   *genai.GenerateVideosOperation
	submitErr   error
	videoPrompt string
	videoConfig *genai.GenerateVideosConfig
	polls       []*genai.GenerateVideosOperation
	pollCalls   int
	// stallPolls makes every status fetch block until its context ends.
	stallPolls bool
}

func (f *fakeBackend) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, contentCall{Model: model, Contents: contents, Config: cfg})
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return &genai.GenerateContentResponse{}, nil
}

func (f *fakeBackend) GenerateVideos(_ context.Context, _ string, prompt string, _ *genai.Image, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoPrompt = prompt
	f.videoConfig = cfg
	return f.submitted, f.submitErr
}

func (f *fakeBackend) GetVideosOperation(ctx context.Context, _ *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	f.mu.Lock()
	if f.stallPolls {
		f.pollCalls++
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer f.mu.Unlock()
	i := f.pollCalls
	f.pollCalls++
	if i < len(f.polls) {
		return f.polls[i], nil
	}
	return f.polls[len(f.polls)-1], nil
}

func (f *fakeBackend) lastCall() contentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// textResponse builds a single-candidate response.
func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 4},
	}
}

func imageResponse(data []byte, mime string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromText("here you go"),
				genai.NewPartFromBytes(data, mime),
			}, genai.RoleModel),
		}},
	}
}

type instantClock struct{ now time.Time }

func (c *instantClock) Now() time.Time { return c.now }
func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type bytesFetcher struct{ data []byte }

func (f bytesFetcher) Fetch(context.Context, string) ([]byte, string, error) {
	return f.data, "video/mp4", nil
}

func newTestGateway(t *testing.T, b *fakeBackend, live bool) *Gateway {
	t.Helper()
	cfg := DefaultConfig("test-key")
	cfg.RetryBackoff = time.Millisecond
	return NewGateway(b, GatewayConfig{
		Provider:          cfg,
		Policy:            routing.NewPolicy(config.DefaultModels(), 32768),
		LiveInfo:          perception.DetectorFunc(func(string) bool { return live }),
		Poller:            media.NewPoller(media.PollerConfig{Clock: &instantClock{now: time.Unix(0, 0)}, Fetcher: bytesFetcher{data: []byte("mp4")}}),
		SystemInstruction: "be helpful",
	})
}
