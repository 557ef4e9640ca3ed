package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterLookupRelease(t *testing.T) {
	r := NewRegistry[string]()
	val := "hello"
	h := r.Register(&val)
	assert.NotZero(t, h)

	got, ok := r.Lookup(h)
	require.True(t, ok)
	assert.Equal(t, "hello", *got)

	r.Release(h)
	_, ok = r.Lookup(h)
	assert.False(t, ok)
}

func TestRegistry_HandlesIncreaseMonotonically(t *testing.T) {
	r := NewRegistry[int]()
	a, b, c := 1, 2, 3
	h1 := r.Register(&a)
	h2 := r.Register(&b)
	h3 := r.Register(&c)
	assert.Less(t, h1, h2)
	assert.Less(t, h2, h3)
}

func TestRegistry_ReleaseUnknownHandleIsNoop(t *testing.T) {
	r := NewRegistry[int]()
	assert.NotPanics(t, func() { r.Release(999) })
}

func TestRegistry_Range(t *testing.T) {
	r := NewRegistry[int]()
	a, b := 1, 2
	r.Register(&a)
	r.Register(&b)

	seen := 0
	r.Range(func(handle int32, v *int) bool {
		seen++
		return true
	})
	assert.Equal(t, 2, seen)
}

func TestRegistry_Adopt(t *testing.T) {
	r := NewRegistry[int]()
	v := 42
	r.Adopt(7, &v)
	got, ok := r.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, 42, *got)
}
