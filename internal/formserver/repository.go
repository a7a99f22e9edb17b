package formserver

import (
	"errors"
	"sync"
	"time"

	"github.com/roach88/formsync/internal/form"
)

// ErrNotFound is returned for an unknown form id.
var ErrNotFound = errors.New("form not found")

// Record is one stored form.
type Record struct {
	ID        string
	Answers   form.Values
	CreatedAt time.Time
	UpdatedAt time.Time
	Revision  int
}

// Repository is an in-memory form store. Creates are idempotent by key.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Repository struct {
	mu    sync.Mutex
	forms map[string]*Record
	byKey map[string]string
	newID func() string
	now   func() time.Time
}

// NewRepository creates an empty repository minting ids with newID.
func NewRepository(newID func() string, now func() time.Time) *Repository {
	return &Repository{
		forms: make(map[string]*Record),
		byKey: make(map[string]string),
		newID: newID,
		now:   now,
	}
}

// Create stores answers under a new id. When key was already used the
// existing record is returned unchanged and created is false.
func (r *Repository) Create(key string, answers form.Values) (rec Record, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key != "" {
		if id, ok := r.byKey[key]; ok {
			return r.copyLocked(r.forms[id]), false
		}
	}

	now := r.now()
	stored := &Record{
		ID:        r.newID(),
		Answers:   answers.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
		Revision:  1,
	}
	r.forms[stored.ID] = stored
	if key != "" {
		r.byKey[key] = stored.ID
	}
	return r.copyLocked(stored), true
}

// Update replaces the answers of id.
func (r *Repository) Update(id string, answers form.Values) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.forms[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	stored.Answers = answers.Clone()
	stored.UpdatedAt = r.now()
	stored.Revision++
	return r.copyLocked(stored), nil
}

// Get returns the record for id.
func (r *Repository) Get(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.forms[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.copyLocked(stored), nil
}

// Len returns the number of stored forms.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

func (r *Repository) copyLocked(rec *Record) Record {
	out := *rec
	out.Answers = rec.Answers.Clone()
	return out
}
