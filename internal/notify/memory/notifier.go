// Package memory records notifications for inspection in tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/eop-tender-crawler/internal/notify"
)

// Notifier stores every Summary it receives.
type Notifier struct {
	mu        sync.RWMutex
	summaries []notify.Summary
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the summary.
func (n *Notifier) Notify(_ context.Context, summary notify.Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return nil
}

// Summaries returns a copy of the recorded summaries.
func (n *Notifier) Summaries() []notify.Summary {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]notify.Summary, len(n.summaries))
	copy(out, n.summaries)
	return out
}
