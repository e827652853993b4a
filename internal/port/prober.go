package port

import "context"

// Prober reports whether the network is reachable right now. The answer is
// advisory and never persisted; it only gates retry attempts.
type Prober interface {
	Online(ctx context.Context) bool
}
