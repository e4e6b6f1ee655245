package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_DropsOldest(t *testing.T) {
	r := NewRing(3)
	assert.Empty(t, r.Values())

	for _, v := range []int{-1, -2, -3, -4, -5} {
		r.Push(v)
		assert.LessOrEqual(t, r.Len(), r.Cap())
	}
	assert.Equal(t, []int{-3, -4, -5}, r.Values())
}

func TestRing_Resize(t *testing.T) {
	r := NewRing(4)
	for _, v := range []int{-1, -2, -3, -4, -5} {
		r.Push(v)
	}

	r.Resize(2)
	assert.Equal(t, []int{-4, -5}, r.Values())

	r.Resize(5)
	r.Push(-6)
	assert.Equal(t, []int{-4, -5, -6}, r.Values())
	assert.Equal(t, 5, r.Cap())
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing(0)
	r.Push(-10)
	r.Push(-20)
	assert.Equal(t, []int{-20}, r.Values())
}
