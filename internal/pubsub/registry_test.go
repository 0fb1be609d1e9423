package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_CallDrainsAndDispatches(t *testing.T) {
	r := NewRegistry[int](0)
	var got []int
	r.Subscribe(func(v int) bool {
		got = append(got, v)
		return true
	})
	r.Call(1)
	r.Call(2)
	assert.Equal(t, []int{1, 2}, got)
}

func TestRegistry_DropsCallbackThatReturnsFalse(t *testing.T) {
	r := NewRegistry[int](0)
	calls := 0
	r.Subscribe(func(v int) bool {
		calls++
		return false
	})
	r.Call(1)
	r.Call(2)
	assert.Equal(t, 1, calls)
}

func TestRegistry_MultipleSubscribersAllFire(t *testing.T) {
	r := NewRegistry[string](0)
	var a, b int
	r.Subscribe(func(string) bool { a++; return true })
	r.Subscribe(func(string) bool { b++; return true })
	r.Call("x")
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestRegistry_CallImmutableDispatches(t *testing.T) {
	r := NewRegistry[int](0)
	var got int
	r.Subscribe(func(v int) bool { got = v; return true })
	r.CallImmutable(1)
	r.CallImmutable(7)
	assert.Equal(t, 7, got)
}
