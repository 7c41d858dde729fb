package syncer

import (
	"context"
	"net/http"
	"time"
)

// HTTPProbe is the default Connectivity implementation: a short HEAD request
// against the API origin. Any HTTP response at all counts as online; only a
// transport failure counts as offline.
type HTTPProbe struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{
		URL:     url,
		Timeout: 3 * time.Second,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (p *HTTPProbe) Online(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
