package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fast3r/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock advances instantly whenever something waits on it.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

type staticFetcher struct {
	data  []byte
	mime  string
	err   error
	calls []string
}

func (f *staticFetcher) Fetch(_ context.Context, uri string) ([]byte, string, error) {
	f.calls = append(f.calls, uri)
	return f.data, f.mime, f.err
}

// doneAfter returns a refresh func that reports done on the nth call.
func doneAfter(n int, final Operation) (RefreshFunc, *int) {
	calls := 0
	return func(_ context.Context, op *Operation) (*Operation, error) {
		calls++
		if calls >= n {
			out := final
			out.Name = op.Name
			out.Done = true
			return &out, nil
		}
		return &Operation{Name: op.Name}, nil
	}, &calls
}

func TestAwait_TwoPollsThenResolve(t *testing.T) {
	clock := newFakeClock()
	fetcher := &staticFetcher{data: []byte("mp4-bytes"), mime: "video/mp4"}
	var events []Event
	p := NewPoller(PollerConfig{
		Interval: 10 * time.Second,
		Clock:    clock,
		Fetcher:  fetcher,
		Observer: func(ev Event) { events = append(events, ev) },
	})

	refresh, calls := doneAfter(2, Operation{VideoURI: "https://files.example/v1/video?alt=media"})
	handle, err := p.Await(context.Background(), &Operation{Name: "operations/abc"}, refresh)
	require.NoError(t, err)

	assert.Equal(t, 2, *calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, clock.waits)
	assert.Equal(t, []string{"https://files.example/v1/video?alt=media"}, fetcher.calls)

	require.Contains(t, handle, HandleScheme)
	blob, ok := p.Store().Open(handle)
	require.True(t, ok)
	assert.Equal(t, []byte("mp4-bytes"), blob.Data)
	assert.Equal(t, "video/mp4", blob.MIMEType)

	var states []State
	for _, ev := range events {
		states = append(states, ev.State)
	}
	assert.Equal(t, []State{StateSubmitted, StatePolling, StatePolling, StateResolved}, states)
}

func TestAwait_AlreadyDoneNeverWaits(t *testing.T) {
	clock := newFakeClock()
	p := NewPoller(PollerConfig{Clock: clock})
	op := &Operation{Name: "op", Done: true, VideoBytes: []byte("inline")}

	handle, err := p.Await(context.Background(), op, func(context.Context, *Operation) (*Operation, error) {
		t.Fatal("refresh should not be called")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, clock.waits)
	blob, ok := p.Store().Open(handle)
	require.True(t, ok)
	assert.Equal(t, "video/mp4", blob.MIMEType)
}

func TestAwait_NeverDoneTimesOut(t *testing.T) {
	clock := newFakeClock()
	p := NewPoller(PollerConfig{Interval: 10 * time.Second, Timeout: time.Minute, Clock: clock})

	refresh, calls := doneAfter(1<<30, Operation{})
	_, err := p.Await(context.Background(), &Operation{Name: "slow"}, refresh)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTimeout))
	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.Equal(t, 6, *calls)
	assert.Zero(t, p.Store().Len())
}

func TestAwait_OperationErrorIsGenerationFailed(t *testing.T) {
	p := NewPoller(PollerConfig{Clock: newFakeClock()})
	refresh, _ := doneAfter(1, Operation{Err: errors.New("safety filter")})

	_, err := p.Await(context.Background(), &Operation{Name: "op"}, refresh)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)
}

func TestAwait_MissingMediaIsGenerationFailed(t *testing.T) {
	p := NewPoller(PollerConfig{Clock: newFakeClock(), Fetcher: &staticFetcher{}})
	refresh, _ := doneAfter(1, Operation{})

	_, err := p.Await(context.Background(), &Operation{Name: "op"}, refresh)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)
}

func TestAwait_RefreshErrorPropagates(t *testing.T) {
	p := NewPoller(PollerConfig{Clock: newFakeClock()})
	boom := types.NewError(types.KindProviderUnavailable, "refresh", errors.New("503"))

	_, err := p.Await(context.Background(), &Operation{Name: "op"}, func(context.Context, *Operation) (*Operation, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, types.ErrProviderUnavailable)
}

func TestAwait_CancelStopsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &staticFetcher{data: []byte("x")}
	p := NewPoller(PollerConfig{Clock: newFakeClock(), Fetcher: fetcher})

	calls := 0
	_, err := p.Await(ctx, &Operation{Name: "op"}, func(context.Context, *Operation) (*Operation, error) {
		calls++
		cancel()
		return &Operation{Name: "op"}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Empty(t, fetcher.calls)
	assert.Zero(t, p.Store().Len())
}

func TestAwait_RealClockCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := NewPoller(PollerConfig{Interval: time.Hour})

	start := time.Now()
	_, err := p.Await(ctx, &Operation{Name: "op"}, func(context.Context, *Operation) (*Operation, error) {
		t.Fatal("refresh should not be called")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwait_StalledRefreshTimesOut(t *testing.T) {
	p := NewPoller(PollerConfig{Interval: time.Millisecond, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := p.Await(context.Background(), &Operation{Name: "op"}, func(ctx context.Context, _ *Operation) (*Operation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAwait_StalledFetchTimesOut(t *testing.T) {
	p := NewPoller(PollerConfig{Timeout: 50 * time.Millisecond, Fetcher: stallingFetcher{}})
	op := &Operation{Name: "op", Done: true, VideoURI: "https://files.example/v"}

	_, err := p.Await(context.Background(), op, nil)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Zero(t, p.Store().Len())
}

type stallingFetcher struct{}

func (stallingFetcher) Fetch(ctx context.Context, _ string) ([]byte, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func TestHTTPFetcher_AppendsKey(t *testing.T) {
	var gotKey, gotAlt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotAlt = r.URL.Query().Get("alt")
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("secret", srv.Client())

	data, mime, err := f.Fetch(context.Background(), srv.URL+"/download?alt=media")
	require.NoError(t, err)
	assert.Equal(t, []byte("video"), data)
	assert.Equal(t, "video/mp4", mime)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "media", gotAlt)

	_, _, err = f.Fetch(context.Background(), srv.URL+"/download")
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
}

func TestHTTPFetcher_NonOKIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, _, err := NewHTTPFetcher("k", srv.Client()).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, types.ErrProviderUnavailable)
}

func TestHTTPFetcher_OversizedIsGenerationFailed(t *testing.T) {
	old := maxVideoBytes
	maxVideoBytes = 4
	t.Cleanup(func() { maxVideoBytes = old })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("12345"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("k", srv.Client())
	_, _, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)

	maxVideoBytes = 5
	data, _, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("12345"), data)
}
