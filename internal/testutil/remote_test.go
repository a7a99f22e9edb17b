package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formsync/internal/form"
)

func TestRecordingRemote_CreateIsIdempotentByKey(t *testing.T) {
	r := NewRecordingRemote()
	ctx := context.Background()

	id1, err := r.Create(ctx, "k1", form.Values{"a": form.Int(1)})
	require.NoError(t, err)
	id2, err := r.Create(ctx, "k1", form.Values{"a": form.Int(2)})
	require.NoError(t, err)

	assert.Equal(t, "form-1", id1)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, r.Forms())

	got, ok := r.Form(id1)
	require.True(t, ok)
	assert.Equal(t, form.Int(2), got["a"])
}

func TestRecordingRemote_FailNext(t *testing.T) {
	r := NewRecordingRemote()
	ctx := context.Background()
	r.FailNext(1, nil)

	_, err := r.Create(ctx, "k1", form.Values{})
	assert.ErrorIs(t, err, ErrRemoteDown)
	assert.Equal(t, 0, r.Forms())

	id, err := r.Create(ctx, "k1", form.Values{})
	require.NoError(t, err)
	assert.Equal(t, "form-1", id)
	assert.Equal(t, 2, r.CountOps("create"))
}

func TestRecordingRemote_LoseNextResponse(t *testing.T) {
	r := NewRecordingRemote()
	ctx := context.Background()
	lost := errors.New("connection reset")
	r.LoseNextResponse(lost)

	_, err := r.Create(ctx, "k1", form.Values{})
	assert.ErrorIs(t, err, lost)
	assert.Equal(t, 1, r.Forms())

	id, err := r.Create(ctx, "k1", form.Values{})
	require.NoError(t, err)
	assert.Equal(t, "form-1", id)
	assert.Equal(t, 1, r.Forms())
}

func TestRecordingRemote_UpdateUnknownForm(t *testing.T) {
	r := NewRecordingRemote()
	err := r.Update(context.Background(), "form-9", form.Values{})
	assert.Error(t, err)
	require.Len(t, r.Calls(), 1)
	assert.Equal(t, "update", r.Calls()[0].Op)
}
