package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fast3r/internal/types"
)

// maxVideoBytes caps a single fetched video.
var maxVideoBytes int64 = 512 << 20

// HTTPFetcher downloads generated media, authenticating with the API key as a
// query parameter the way the provider's file endpoints expect.
type HTTPFetcher struct {
	apiKey string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client gets a 5 minute timeout.
func NewHTTPFetcher(apiKey string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTPFetcher{apiKey: apiKey, client: client}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	const op = "media.Fetch"
	u, err := url.Parse(uri)
	if err != nil {
		return nil, "", types.NewError(types.KindGenerationFailed, op, fmt.Errorf("bad media uri: %w", err))
	}
	q := u.Query()
	q.Set("key", f.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", types.NewError(types.KindGenerationFailed, op, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		// Strip the URL so the credential never reaches logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, "", types.NewError(types.KindProviderUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", types.NewError(types.KindProviderUnavailable, op,
			fmt.Errorf("media download returned %d: %s", resp.StatusCode, string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVideoBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", types.NewError(types.KindProviderUnavailable, op, fmt.Errorf("read media: %w", err))
	}
	if int64(len(data)) > maxVideoBytes {
		return nil, "", types.NewError(types.KindGenerationFailed, op,
			fmt.Errorf("media exceeds %d bytes", maxVideoBytes))
	}
	return data, resp.Header.Get("Content-Type"), nil
}
