package props

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRecordsWrites(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetField(FieldModel, String("Pixel 5")))
	require.NoError(t, s.SetField(FieldInitialSDK, Int(25)))

	v, ok := s.Get(FieldModel)
	require.True(t, ok)
	assert.Equal(t, "Pixel 5", v.Str())
	assert.Len(t, s.Writes(), 2)

	s.Reset()
	assert.Empty(t, s.Writes())
	_, ok = s.Get(FieldModel)
	assert.False(t, ok)
}

func TestStoreRejectsUnsupportedField(t *testing.T) {
	s := NewStore(FieldBrand, FieldModel)
	err := s.SetField(FieldInitialSDK, Int(25))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldUnavailable))
	assert.Empty(t, s.Writes())
}

func TestStoreRejectsKindMismatch(t *testing.T) {
	s := NewStore()
	err := s.SetField(FieldInitialSDK, String("25"))
	require.ErrorIs(t, err, ErrFieldUnavailable)
	err = s.SetField(FieldModel, Int(5))
	require.ErrorIs(t, err, ErrFieldUnavailable)
}

func TestStoreSeedIsNotAWrite(t *testing.T) {
	s := NewStore().Seed(Entry{FieldBrand, String("generic")})
	v, ok := s.Get(FieldBrand)
	require.True(t, ok)
	assert.Equal(t, "generic", v.Str())
	assert.Empty(t, s.Writes())
	assert.Len(t, s.Snapshot(), 1)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.SetField(FieldModel, String("m"))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Get(FieldModel)
		}()
	}
	wg.Wait()
	assert.Len(t, s.Writes(), 20)
}

func TestSinkFunc(t *testing.T) {
	var got []Field
	sink := SinkFunc(func(f Field, _ Value) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, sink.SetField(FieldBrand, String("x")))
	assert.Equal(t, []Field{FieldBrand}, got)
}
