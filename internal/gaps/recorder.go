package gaps

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openhouse/property-assistant/internal/db"
	"github.com/openhouse/property-assistant/internal/logger"
)

// Store is the persistence surface for gap entries.
type Store interface {
	InsertGap(ctx context.Context, entry *db.GapEntry) error
	GroupedGaps(ctx context.Context, q db.GapQuery) ([]db.GapGroup, error)
}

// DefaultListLimit caps the grouped gap listing.
const DefaultListLimit = 30

// insertTimeout bounds each background write so a stalled store cannot
// pin the worker forever.
const insertTimeout = 10 * time.Second

// Recorder appends gap entries through a non-blocking best-effort sink.
// Record never blocks the caller and never surfaces a failure: storage
// errors are swallowed and only observability-logged, and a full buffer
// drops the entry rather than stalling the answer path.
type Recorder struct {
	store Store
	ch    chan *db.GapEntry
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates a recorder with the given buffer size and starts
// its worker.
func NewRecorder(store Store, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 128
	}
	r := &Recorder{
		store: store,
		ch:    make(chan *db.GapEntry, bufferSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for entry := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := r.store.InsertGap(ctx, entry); err != nil {
			logger.Warn("gap logging failed for question %q: %v", entry.UserQuestion, err)
		}
		cancel()
	}
}

// Record enqueues one gap entry. Missing IDs and timestamps are filled
// in. Entries offered after Close, or while the buffer is full, are
// dropped with a warning.
func (r *Recorder) Record(entry *db.GapEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.IntentType == "" {
		entry.IntentType = "unknown"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		logger.Warn("gap recorder closed; dropping entry for %q", entry.UserQuestion)
		return
	}
	select {
	case r.ch <- entry:
	default:
		logger.Warn("gap buffer full; dropping entry for %q", entry.UserQuestion)
	}
}

// Close stops accepting entries and waits for buffered writes to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	r.wg.Wait()
}

// ListGroups returns the developer-facing grouped gap listing: document
// related reasons only, grouped by question, intent, reason and scheme,
// ordered by count descending, capped at DefaultListLimit. At least one
// of schemeID or tenantID is required.
func ListGroups(ctx context.Context, store Store, schemeID, tenantID uuid.UUID) ([]db.GapGroup, error) {
	return store.GroupedGaps(ctx, db.GapQuery{
		SchemeID: schemeID,
		TenantID: tenantID,
		Reasons:  DocumentRelatedReasons(),
		Limit:    DefaultListLimit,
	})
}
