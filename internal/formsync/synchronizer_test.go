package formsync_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/formsync"
	"github.com/roach88/formsync/internal/store"
	"github.com/roach88/formsync/internal/testutil"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "formsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// flakyStore wraps a real store and fails selected writes.
type flakyStore struct {
	*store.Store

	mu           sync.Mutex
	failGroup    bool
	failValueKey string
}

func (f *flakyStore) SetGroup(ctx context.Context, name string, values form.Values) error {
	f.mu.Lock()
	fail := f.failGroup
	f.mu.Unlock()
	if fail {
		return &store.StorageWriteError{Op: store.OpSetGroup, Key: name, Err: errors.New("disk full")}
	}
	return f.Store.SetGroup(ctx, name, values)
}

func (f *flakyStore) SetValue(ctx context.Context, key string, value form.Value) error {
	f.mu.Lock()
	fail := f.failValueKey == key
	f.mu.Unlock()
	if fail {
		return &store.StorageWriteError{Op: store.OpSetValue, Key: key, Err: errors.New("disk full")}
	}
	return f.Store.SetValue(ctx, key, value)
}

func newSync(t *testing.T) (*formsync.Synchronizer, *store.Store, *testutil.RecordingRemote) {
	t.Helper()
	st := openStore(t)
	remote := testutil.NewRecordingRemote()
	s := formsync.New(st, remote, formsync.WithKeyGenerator(testutil.NewFixedKeyGenerator("")))
	return s, st, remote
}

func TestSubmitPage_FirstSubmissionCreates(t *testing.T) {
	s, st, remote := newSync(t)
	ctx := context.Background()

	id, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand")})
	require.NoError(t, err)
	assert.Equal(t, "form-1", id)

	stored, ok, err := st.GetString(ctx, store.KeyFormIdentifier)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, stored)

	calls := remote.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "create", calls[0].Op)
	assert.Equal(t, "test-session-default", calls[0].Key)
	assert.Equal(t, form.Values{"nom": form.String("Durand")}, calls[0].Snapshot)
}

func TestSubmitPage_LaterSubmissionsUpdateWithFullSnapshot(t *testing.T) {
	s, _, remote := newSync(t)
	ctx := context.Background()

	id1, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand")})
	require.NoError(t, err)
	id2, err := s.SubmitPage(ctx, "maladie", form.Values{
		"organeForm":     form.String("C22"),
		"nom_organeForm": form.String("Foie"),
	})
	require.NoError(t, err)
	id3, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Martin")})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, id1, id3)
	assert.Equal(t, 1, remote.CountOps("create"))
	assert.Equal(t, 2, remote.CountOps("update"))
	assert.Equal(t, 1, remote.Forms())

	got, ok := remote.Form(id1)
	require.True(t, ok)
	assert.Equal(t, form.Values{
		"nom":            form.String("Martin"),
		"organeForm":     form.String("C22"),
		"nom_organeForm": form.String("Foie"),
	}, got)
}

func TestSubmitPage_StorageFailureSkipsRemote(t *testing.T) {
	st := &flakyStore{Store: openStore(t), failGroup: true}
	remote := testutil.NewRecordingRemote()
	s := formsync.New(st, remote)

	_, err := s.SubmitPage(context.Background(), "identite", form.Values{"nom": form.String("Durand")})
	require.Error(t, err)
	assert.True(t, formsync.IsStorageWriteError(err))
	assert.False(t, formsync.IsSyncError(err))
	assert.Empty(t, remote.Calls())
}

func TestSubmitPage_CreateFailureKeepsLocalAnswers(t *testing.T) {
	s, st, remote := newSync(t)
	ctx := context.Background()
	remote.FailNext(1, nil)

	_, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand")})
	require.Error(t, err)

	var se *formsync.SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, formsync.ErrCodeCreateFailed, se.Code)
	assert.True(t, se.LocalSaved)
	assert.ErrorIs(t, err, testutil.ErrRemoteDown)

	group, ok, err := st.Group(ctx, "identite")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, form.Values{"nom": form.String("Durand")}, group)

	_, ok, err = st.GetString(ctx, store.KeyFormIdentifier)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitPage_RetryAfterCreateFailureCreatesOnce(t *testing.T) {
	s, _, remote := newSync(t)
	ctx := context.Background()
	remote.FailNext(2, nil)

	values := form.Values{"nom": form.String("Durand")}
	for i := 0; i < 2; i++ {
		_, err := s.SubmitPage(ctx, "identite", values)
		require.True(t, formsync.IsSyncError(err))
	}
	id, err := s.SubmitPage(ctx, "identite", values)
	require.NoError(t, err)

	assert.Equal(t, "form-1", id)
	assert.Equal(t, 1, remote.Forms())
}

func TestSubmitPage_LostCreateResponseResolvesToSameForm(t *testing.T) {
	s, _, remote := newSync(t)
	ctx := context.Background()
	remote.LoseNextResponse(errors.New("connection reset"))

	_, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand")})
	require.True(t, formsync.IsSyncError(err))
	assert.Equal(t, 1, remote.Forms())

	id, err := s.SubmitPage(ctx, "maladie", form.Values{"organeForm": form.String("C22")})
	require.NoError(t, err)
	assert.Equal(t, "form-1", id)
	assert.Equal(t, 1, remote.Forms(), "session key must deduplicate the retried create")

	got, ok := remote.Form(id)
	require.True(t, ok)
	assert.Equal(t, form.Values{
		"nom":        form.String("Durand"),
		"organeForm": form.String("C22"),
	}, got)
}

func TestSubmitPage_UpdateFailure(t *testing.T) {
	s, _, remote := newSync(t)
	ctx := context.Background()

	id, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand")})
	require.NoError(t, err)

	remote.FailNext(1, nil)
	_, err = s.SubmitPage(ctx, "maladie", form.Values{"organeForm": form.String("C22")})

	var se *formsync.SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, formsync.ErrCodeUpdateFailed, se.Code)
	assert.Equal(t, id, se.FormID)

	// Re-submitting is the retry.
	_, err = s.SubmitPage(ctx, "maladie", form.Values{"organeForm": form.String("C22")})
	require.NoError(t, err)
	got, _ := remote.Form(id)
	assert.Equal(t, form.String("C22"), got["organeForm"])
}

func TestSubmitPage_IdentifierPersistFailure(t *testing.T) {
	st := &flakyStore{Store: openStore(t), failValueKey: store.KeyFormIdentifier}
	remote := testutil.NewRecordingRemote()
	s := formsync.New(st, remote, formsync.WithKeyGenerator(testutil.NewFixedKeyGenerator("k1")))
	ctx := context.Background()

	_, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand")})
	var se *formsync.SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, formsync.ErrCodeIdentifierPersist, se.Code)
	assert.Equal(t, "form-1", se.FormID)

	st.mu.Lock()
	st.failValueKey = ""
	st.mu.Unlock()

	id, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand")})
	require.NoError(t, err)
	assert.Equal(t, "form-1", id)
	assert.Equal(t, 1, remote.Forms())
}

// emptyIDRemote answers creates without an identifier.
type emptyIDRemote struct{}

func (emptyIDRemote) Create(context.Context, string, form.Values) (string, error) { return "", nil }
func (emptyIDRemote) Update(context.Context, string, form.Values) error           { return nil }

func TestSubmitPage_EmptyIdentifierIsInvalidResponse(t *testing.T) {
	s := formsync.New(openStore(t), emptyIDRemote{})

	_, err := s.SubmitPage(context.Background(), "identite", form.Values{})
	var se *formsync.SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, formsync.ErrCodeInvalidResponse, se.Code)
}

func TestSubmitPage_SessionKeyIsStoredBeforeCreate(t *testing.T) {
	s, st, remote := newSync(t)
	ctx := context.Background()
	remote.FailNext(1, nil)

	_, _ = s.SubmitPage(ctx, "identite", form.Values{})

	key, ok, err := st.GetString(ctx, store.KeySessionKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "test-session-default", key)
}

func TestSubmitPage_ConcurrentSubmissionsCreateOnce(t *testing.T) {
	st := openStore(t)
	remote := testutil.NewRecordingRemote()
	s := formsync.New(st, remote)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand")})
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, remote.CountOps("create"))
	assert.Equal(t, 7, remote.CountOps("update"))
}

func TestSubmitPage_CanceledWhileWaiting(t *testing.T) {
	guard := formsync.NewGuard()
	release, err := guard.Acquire(context.Background(), formsync.DefaultQuestionnaireKey)
	require.NoError(t, err)
	defer release()

	remote := testutil.NewRecordingRemote()
	s := formsync.New(openStore(t), remote, formsync.WithGuard(guard))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.SubmitPage(ctx, "identite", form.Values{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, remote.Calls())
}

func TestStatus(t *testing.T) {
	s, _, _ := newSync(t)
	ctx := context.Background()

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.FormID)
	assert.Equal(t, 0, st.Fields)

	id, err := s.SubmitPage(ctx, "identite", form.Values{"nom": form.String("Durand"), "age": form.Int(61)})
	require.NoError(t, err)

	st, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, st.FormID)
	assert.Equal(t, 2, st.Fields)
	assert.Len(t, st.SnapshotHash, 64)
	assert.False(t, st.Syncing)
}

func TestStatus_ReportsSubmissionInProgress(t *testing.T) {
	guard := formsync.NewGuard()
	s := formsync.New(openStore(t), testutil.NewRecordingRemote(), formsync.WithGuard(guard))
	ctx := context.Background()

	release, err := guard.Acquire(ctx, formsync.DefaultQuestionnaireKey)
	require.NoError(t, err)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Syncing)

	release()

	st, err = s.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Syncing)
}
