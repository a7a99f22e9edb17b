package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formsync/internal/form"
)

func TestGetValue_Absent(t *testing.T) {
	s := createTestStore(t)

	v, ok, err := s.GetValue(context.Background(), KeyFormIdentifier)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestGetString_NonString(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetValue(ctx, "count", form.Int(3)))
	_, ok, err := s.GetString(ctx, "count")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroup_Absent(t *testing.T) {
	s := createTestStore(t)
	_, ok, err := s.Group(context.Background(), "therapies")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroups_EmptyStoreReturnsEmptySlice(t *testing.T) {
	s := createTestStore(t)
	groups, err := s.Groups(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestSnapshot_FlattensAllGroups(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetGroup(ctx, "donnees_perso", form.Values{
		"nomForm":    form.String("Dupont"),
		"ageForm":    form.Int(54),
		"fumeurForm": form.Bool(false),
	}))
	require.NoError(t, s.SetGroup(ctx, "maladie", form.Values{
		"organeForm":     form.String("C22"),
		"nom_organeForm": form.String("Foie"),
	}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)

	want := form.Values{
		"nomForm":        form.String("Dupont"),
		"ageForm":        form.Int(54),
		"fumeurForm":     form.Bool(false),
		"organeForm":     form.String("C22"),
		"nom_organeForm": form.String("Foie"),
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshot_LastWriteWinsByWriteOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// "zz" sorts after "aa" by name, but "aa" is written last and must win.
	require.NoError(t, s.SetGroup(ctx, "zz", form.Values{"shared": form.String("from zz")}))
	require.NoError(t, s.SetGroup(ctx, "aa", form.Values{"shared": form.String("from aa")}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, form.String("from aa"), snap["shared"])

	// Rewriting zz makes it the most recent group again.
	require.NoError(t, s.SetGroup(ctx, "zz", form.Values{"shared": form.String("from zz again")}))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, form.String("from zz again"), snap["shared"])
}

func TestSnapshot_ExcludesPointValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetValue(ctx, KeyFormIdentifier, form.String("form-1")))
	require.NoError(t, s.SetGroup(ctx, "maladie", form.Values{"etatForm": form.String("stable")}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotContains(t, snap, KeyFormIdentifier)
	assert.Len(t, snap, 1)
}

func TestSnapshot_IsFreshCopy(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetGroup(ctx, "maladie", form.Values{"etatForm": form.String("stable")}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	snap["etatForm"] = form.String("mutated")

	again, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, form.String("stable"), again["etatForm"])
}

func TestSnapshot_ReadAfterWrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		group := string(rune('a' + i))
		require.NoError(t, s.SetGroup(ctx, group, form.Values{group: form.Int(int64(i))}))

		snap, err := s.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, snap, i+1)
		assert.Equal(t, form.Int(int64(i)), snap[group])
	}
}
