package telemetry

import (
	"crypto/rand"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/org/authcore/pkg/models"
)

// DefaultAuditCapacity is the number of audit events kept in memory.
const DefaultAuditCapacity = 1000

// AuditLog is a bounded, volatile audit trail. Events are not persisted.
type AuditLog struct {
	ring *Ring[models.AuditEvent]
	now  func() time.Time

	// guards entropy and keeps ids ordered with insertion
	mu      sync.Mutex
	entropy io.Reader
}

// AuditOption configures an AuditLog.
type AuditOption func(*AuditLog)

// WithAuditClock overrides the time source used for timestamps and ids.
func WithAuditClock(fn func() time.Time) AuditOption {
	return func(a *AuditLog) {
		if fn != nil {
			a.now = fn
		}
	}
}

// NewAuditLog creates an AuditLog keeping the newest capacity events.
func NewAuditLog(capacity int, opts ...AuditOption) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	a := &AuditLog{
		ring:    NewRing[models.AuditEvent](capacity),
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record appends an event and returns it. actor and target may be nil.
func (a *AuditLog) Record(action string, actor, target *string, metadata map[string]any) models.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()
	ev := models.AuditEvent{
		ID:        ulid.MustNew(ulid.Timestamp(now), a.entropy).String(),
		Timestamp: now.Format(time.RFC3339Nano),
		Actor:     copyString(actor),
		Action:    action,
		Target:    copyString(target),
		Metadata:  maps.Clone(metadata),
	}
	a.ring.Append(ev)
	return ev
}

// Recent returns up to limit of the newest events, oldest first.
func (a *AuditLog) Recent(limit int) []models.AuditEvent {
	return a.ring.Last(limit)
}

// Len returns the number of stored events.
func (a *AuditLog) Len() int { return a.ring.Len() }

// Reset drops every event.
func (a *AuditLog) Reset() { a.ring.Reset() }

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
