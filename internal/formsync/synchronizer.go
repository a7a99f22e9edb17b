// Package formsync saves questionnaire pages locally and mirrors the
// accumulated form to the remote form resource.
//
// Each page submission is two phases:
//
//  1. Save locally: the page's field group is written to the local
//     store. Failure aborts the submission with *StorageWriteError and
//     no remote call is made.
//  2. Sync remotely: the full snapshot is sent with create (no form
//     identifier yet) or update (identifier present). Failure returns
//     *SyncError with LocalSaved set; nothing local is lost.
//
// The Synchronizer does not retry or queue. Retry is re-submitting the
// page, which is safe: a group write by name is idempotent, updates are
// idempotent by identifier, and creates carry a session key the remote
// uses to deduplicate.
package formsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/store"
)

// DefaultQuestionnaireKey is the guard key used when none is configured.
const DefaultQuestionnaireKey = "questionnaire"

// LocalStore is the local persistence the synchronizer needs.
// Implemented by *store.Store.
type LocalStore interface {
	SetGroup(ctx context.Context, name string, values form.Values) error
	SetValue(ctx context.Context, key string, value form.Value) error
	GetValue(ctx context.Context, key string) (form.Value, bool, error)
	Snapshot(ctx context.Context) (form.Values, error)
}

// Remote is the remote form resource.
// Implemented by *remote.Client (production) and testutil.RecordingRemote (tests).
type Remote interface {
	// Create stores a new form and returns its identifier. Creates with
	// the same session key must resolve to the same form.
	Create(ctx context.Context, sessionKey string, snapshot form.Values) (string, error)

	// Update replaces the answers of an existing form.
	Update(ctx context.Context, id string, snapshot form.Values) error
}

// Synchronizer orchestrates local save and remote sync for one questionnaire.
//
// Thread-safety: SubmitPage may be called from any goroutine. Calls for
// the same questionnaire key are serialized by the guard.
type Synchronizer struct {
	local  LocalStore
	remote Remote
	guard  *Guard
	keys   KeyGenerator
	qkey   string
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithQuestionnaireKey sets the single-flight key.
// Default: DefaultQuestionnaireKey.
func WithQuestionnaireKey(key string) Option {
	return func(s *Synchronizer) {
		s.qkey = key
	}
}

// WithGuard shares a guard between synchronizers that front the same
// questionnaire, so their submissions are serialized together.
func WithGuard(g *Guard) Option {
	return func(s *Synchronizer) {
		s.guard = g
	}
}

// WithKeyGenerator overrides the session key generator (for testing).
// Default: UUIDv7Generator.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(s *Synchronizer) {
		s.keys = gen
	}
}

// New creates a Synchronizer over the given local store and remote.
func New(local LocalStore, remote Remote, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		local:  local,
		remote: remote,
		guard:  NewGuard(),
		keys:   UUIDv7Generator{},
		qkey:   DefaultQuestionnaireKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitPage saves one page of answers and synchronizes the whole form.
// It returns the confirmed form identifier. The caller should advance
// the questionnaire only once this returns.
//
// Errors:
//   - *StorageWriteError: nothing was saved; no remote call was made
//   - *SyncError: the page is saved locally; re-submit to retry the sync
//   - ctx.Err(): ctx ended while waiting for an earlier submission
func (s *Synchronizer) SubmitPage(ctx context.Context, group string, values form.Values) (string, error) {
	release, err := s.guard.Acquire(ctx, s.qkey)
	if err != nil {
		return "", fmt.Errorf("submit %q: %w", group, err)
	}
	defer release()

	// Phase 1: save locally.
	if err := s.local.SetGroup(ctx, group, values); err != nil {
		slog.Error("local save failed", "group", group, "error", err)
		return "", err
	}

	// Phase 2: sync remotely.
	id, hasID, err := s.formID(ctx)
	if err != nil {
		return "", newSyncError(ErrCodeLocalRead, group, "", err)
	}

	snapshot, err := s.local.Snapshot(ctx)
	if err != nil {
		return "", newSyncError(ErrCodeLocalRead, group, id, err)
	}

	hash, err := form.SnapshotHash(snapshot)
	if err != nil {
		return "", newSyncError(ErrCodeLocalRead, group, id, err)
	}
	logger := slog.With("group", group, "fields", len(snapshot), "snapshot_hash", hash[:12])

	if hasID {
		if err := s.remote.Update(ctx, id, snapshot); err != nil {
			logger.Warn("remote update failed, answers kept locally", "form_id", id, "error", err)
			return "", newSyncError(ErrCodeUpdateFailed, group, id, err)
		}
		logger.Info("form updated", "form_id", id)
		return id, nil
	}

	key, err := s.sessionKey(ctx)
	if err != nil {
		return "", newSyncError(ErrCodeLocalRead, group, "", err)
	}

	newID, err := s.remote.Create(ctx, key, snapshot)
	if err != nil {
		logger.Warn("remote create failed, answers kept locally", "error", err)
		return "", newSyncError(ErrCodeCreateFailed, group, "", err)
	}
	if newID == "" {
		return "", newSyncError(ErrCodeInvalidResponse, group, "", fmt.Errorf("create returned an empty identifier"))
	}

	if err := s.local.SetValue(ctx, store.KeyFormIdentifier, form.String(newID)); err != nil {
		// The remote form exists; the next submission re-creates with the
		// same session key and resolves to this identifier again.
		return "", newSyncError(ErrCodeIdentifierPersist, group, newID, err)
	}

	logger.Info("form created", "form_id", newID)
	return newID, nil
}

// formID reads the stored form identifier.
func (s *Synchronizer) formID(ctx context.Context) (string, bool, error) {
	v, ok, err := s.local.GetValue(ctx, store.KeyFormIdentifier)
	if err != nil || !ok {
		return "", false, err
	}
	id, isStr := v.(form.String)
	if !isStr || id == "" {
		return "", false, nil
	}
	return string(id), true, nil
}

// sessionKey returns the stored session key, minting and storing one on
// first use. The key must be durable before the create is sent.
func (s *Synchronizer) sessionKey(ctx context.Context) (string, error) {
	v, ok, err := s.local.GetValue(ctx, store.KeySessionKey)
	if err != nil {
		return "", err
	}
	if key, isStr := v.(form.String); ok && isStr && key != "" {
		return string(key), nil
	}

	key := s.keys.Generate()
	if err := s.local.SetValue(ctx, store.KeySessionKey, form.String(key)); err != nil {
		return "", err
	}
	return key, nil
}

// Status summarizes what has been collected and synchronized so far.
type Status struct {
	// FormID is the remote identifier, empty before the first create.
	FormID string

	// Fields is the number of answers in the local snapshot.
	Fields int

	// SnapshotHash identifies the local snapshot content.
	SnapshotHash string

	// Syncing is set while a submission for this questionnaire holds the
	// guard.
	Syncing bool
}

// Status reads the local state without touching the remote.
func (s *Synchronizer) Status(ctx context.Context) (Status, error) {
	id, _, err := s.formID(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("status: %w", err)
	}
	snapshot, err := s.local.Snapshot(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("status: %w", err)
	}
	hash, err := form.SnapshotHash(snapshot)
	if err != nil {
		return Status{}, fmt.Errorf("status: %w", err)
	}
	return Status{
		FormID:       id,
		Fields:       len(snapshot),
		SnapshotHash: hash,
		Syncing:      s.guard.Busy(s.qkey),
	}, nil
}
