package access

import (
	"sync"
	"time"

	"github.com/mmynk/tontine/internal/models"
)

// Tracker re-evaluates the decision on every subscription change and raises
// a one-shot navigation request when access goes from denied to granted.
type Tracker struct {
	mu       sync.Mutex
	decision Decision
	seen     bool
	navigate bool
}

// NewTracker creates a tracker with no decision yet.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update recomputes the decision and returns it. Re-applying the same state
// does not change anything.
func (t *Tracker) Update(sub *models.Subscription, signals Signals, now time.Time) Decision {
	d := Compute(sub, signals, now)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen && t.decision.Denied() && d.Granted() {
		t.navigate = true
	}
	if !d.Granted() {
		t.navigate = false
	}
	t.decision = d
	t.seen = true
	return d
}

// Decision returns the last computed decision.
func (t *Tracker) Decision() Decision {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.decision
}

// ConsumeNavigation returns the screen to force-navigate to, at most once per
// denied to granted transition.
func (t *Tracker) ConsumeNavigation() (Screen, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.navigate {
		return "", false
	}
	t.navigate = false
	return DefaultScreen(t.decision), true
}
