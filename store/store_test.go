package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"syncarena/entity"
	"syncarena/replica"
)

func createTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store_test.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func layoutStatics(t *testing.T, specs []entity.ObjectSpec) []replica.Static {
	t.Helper()
	w, err := entity.BuildWorld(specs)
	require.NoError(t, err)
	return w.Statics()
}

func TestFingerprint_IgnoresOrder(t *testing.T) {
	specs := entity.DefaultLayout()
	a := Fingerprint(layoutStatics(t, specs))

	reversed := make([]entity.ObjectSpec, len(specs))
	for i, s := range specs {
		reversed[len(specs)-1-i] = s
	}
	b := Fingerprint(layoutStatics(t, reversed))
	assert.Equal(t, a, b)

	moved := entity.DefaultLayout()
	moved[0].Position[0] += 1
	assert.NotEqual(t, a, Fingerprint(layoutStatics(t, moved)))
}

func TestStaticIDs_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStorage(t)
	layout := Fingerprint(layoutStatics(t, entity.DefaultLayout()))

	_, err := s.LoadStaticIDs(ctx, layout)
	assert.ErrorIs(t, err, ErrNotFound)

	ids := []replica.ID{4, 0, 300, 70000}
	require.NoError(t, s.SaveStaticIDs(ctx, layout, ids))

	got, err := s.LoadStaticIDs(ctx, layout)
	require.NoError(t, err)
	assert.Equal(t, ids, got)
}

func TestStaticIDs_SurviveReopen(t *testing.T) {
	ctx := context.Background()
	s, path := createTestStorage(t)
	layout := Fingerprint(layoutStatics(t, entity.DefaultLayout()))
	require.NoError(t, s.SaveStaticIDs(ctx, layout, []replica.ID{1, 2, 3}))

	instance, err := s.InstanceID(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.LoadStaticIDs(ctx, layout)
	require.NoError(t, err)
	assert.Equal(t, []replica.ID{1, 2, 3}, got)

	again, err := reopened.InstanceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, instance, again)
}

func TestStaticIDs_EmptyList(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStorage(t)
	layout := Fingerprint(nil)
	require.NoError(t, s.SaveStaticIDs(ctx, layout, nil))

	got, err := s.LoadStaticIDs(ctx, layout)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadStaticIDs_BucketMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStorage(t)
	require.NoError(t, s.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketStatic)
	}))

	_, err := s.LoadStaticIDs(ctx, uuid.Nil)
	assert.Error(t, err)
}
