package netprobe

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ostrel/batchget/internal/port"
)

// Prober answers whether the network is reachable by fetching a fixed,
// highly available endpoint with a short timeout.
type Prober struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// Ensure Prober implements port.Prober
var _ port.Prober = (*Prober)(nil)

// New creates a new Prober
func New(url string, timeout time.Duration, logger *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Online performs the reachability check. Any completed response counts as
// online; the status code does not matter, only that the network answered.
func (p *Prober) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("connectivity probe failed",
			zap.String("url", p.url),
			zap.Error(err))
		return false
	}
	resp.Body.Close()
	return true
}
