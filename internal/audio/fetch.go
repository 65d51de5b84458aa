package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	errNoCachedHandle  = errors.New("no eligible cached handle")
	errNoHandleFactory = errors.New("no handle factory configured")
	errNoFetcher       = errors.New("no fetcher configured")
)

// Fetcher retrieves raw audio bytes for the last-resort decode path.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// maxClipBytes caps fetched clips; question audio is a few seconds long.
const maxClipBytes = 8 << 20

// HTTPFetcher fetches resource bytes over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build audio request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}
	return data, nil
}
