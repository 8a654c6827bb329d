package mscfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardcontact/cardfs/pkg/models"
)

func fileEntry(i int) models.Entry {
	return models.Entry{
		ID:   models.ObjectID{0x50, 0x15, byte(i >> 8), byte(i)},
		Kind: models.KindFile,
		Size: uint32(i),
	}
}

func TestCache_GrowthPreservesOrder(t *testing.T) {
	c := NewCache()
	for i := 1; i <= 129; i++ {
		require.NoError(t, c.Push(fileEntry(i)))
	}

	assert.Equal(t, 129, c.Len())
	assert.Equal(t, 256, c.Cap())
	assert.Equal(t, 1, c.Grows(), "exactly one reallocation")
	for i := 0; i < 129; i++ {
		assert.Equal(t, fileEntry(i+1), c.At(i))
	}
}

func TestCache_CustomIncrement(t *testing.T) {
	c := &Cache{Increment: 4}
	for i := 1; i <= 9; i++ {
		require.NoError(t, c.Push(fileEntry(i)))
	}
	assert.Equal(t, 12, c.Cap())
	assert.Equal(t, 2, c.Grows())
}

func TestCache_LimitReturnsOutOfMemory(t *testing.T) {
	c := &Cache{Increment: 4, Limit: 6}
	for i := 1; i <= 6; i++ {
		require.NoError(t, c.Push(fileEntry(i)))
	}
	assert.Equal(t, 6, c.Cap())

	err := c.Push(fileEntry(7))
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, 6, c.Len(), "failed push must not append")
	assert.Equal(t, -1, c.Find(fileEntry(7).ID))
}

func TestCache_ClearIsIdempotent(t *testing.T) {
	c := NewCache()
	c.Clear()
	require.NoError(t, c.Push(fileEntry(1)))
	c.Clear()
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Cap())
	assert.Equal(t, 0, c.Grows())
}

func TestCache_EntriesIsCopy(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Push(fileEntry(1)))

	entries := c.Entries()
	entries[0].Size = 999
	assert.Equal(t, uint32(1), c.At(0).Size)
}

func TestIsIgnored(t *testing.T) {
	tests := []struct {
		id   models.ObjectID
		want bool
	}{
		{models.ObjectID{'l', '0', 0, 0}, true},
		{models.ObjectID{'L', '0', 0, 0}, true},
		{models.ObjectID{'l', '0', 0, 1}, false},
		{models.ObjectID{0x3F, 0x00, 0x00, 0x00}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsIgnored(tt.id), tt.id.String())
	}
}

func TestNormalize(t *testing.T) {
	df := normalize(models.Entry{ID: models.ObjectID{0x50, 0x15, 0x00, 0x00}, Kind: models.KindFile})
	assert.Equal(t, models.ObjectID{0x3F, 0x00, 0x50, 0x15}, df.ID)
	assert.Equal(t, models.KindDirectory, df.Kind)

	ef := normalize(models.Entry{ID: models.ObjectID{0x50, 0x15, 0x01, 0x02}, Kind: models.KindDirectory})
	assert.Equal(t, models.ObjectID{0x50, 0x15, 0x01, 0x02}, ef.ID)
	assert.Equal(t, models.KindFile, ef.Kind)
}

func TestDenormalize(t *testing.T) {
	tests := []struct {
		raw models.ObjectID
	}{
		{models.ObjectID{0x50, 0x15, 0x00, 0x00}},
		{models.ObjectID{0x3F, 0x00, 0x00, 0x00}},
		{models.ObjectID{0x50, 0x15, 0x01, 0x02}},
		{models.ObjectID{0x3F, 0x00, 0x00, 0x01}},
	}
	for _, tt := range tests {
		e := denormalize(normalize(models.Entry{ID: tt.raw, Size: 9}))
		assert.Equal(t, tt.raw, e.ID, "raw %s", tt.raw)
		assert.Equal(t, uint32(9), e.Size)
	}
}
