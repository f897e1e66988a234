package pathstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_IdenticalStringsShareID(t *testing.T) {
	s := New()

	id1 := s.GetOrCreate("/user/hand/left/input/select/click")
	id2 := s.GetOrCreate("/user/hand/left/input/select/click")

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, Nil, id1)

	str, err := s.GetString(id1)
	require.NoError(t, err)
	assert.Equal(t, "/user/hand/left/input/select/click", str)
	assert.Len(t, str, 32)
}

func TestGetOrCreate_DistinctStringsGetDistinctIDs(t *testing.T) {
	s := New()
	id1 := s.GetOrCreate("/user/hand/left")
	id2 := s.GetOrCreate("/user/hand/right")
	assert.NotEqual(t, id1, id2)
}

func TestOnlyGet_DoesNotIntern(t *testing.T) {
	s := New()
	_, ok := s.OnlyGet("/user/hand/left")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	s.GetOrCreate("/user/hand/left")
	id, ok := s.OnlyGet("/user/hand/left")
	assert.True(t, ok)
	assert.NotEqual(t, Nil, id)
}

func TestAttach_RoundTrips(t *testing.T) {
	s := New()
	id := s.GetOrCreate("/interaction_profiles/khr/simple_controller")

	require.NoError(t, s.Attach(id, "canonical"))
	assert.Equal(t, "canonical", s.GetAttached(id))
}

func TestAttach_UnknownID(t *testing.T) {
	s := New()
	err := s.Attach(ID(999), "x")
	require.Error(t, err)
}

func TestDestroyAll_ClearsEverything(t *testing.T) {
	s := New()
	s.GetOrCreate("/user/hand/left")
	s.DestroyAll()
	assert.Equal(t, 0, s.Len())

	id, ok := s.OnlyGet("/user/hand/left")
	assert.False(t, ok)
	assert.Equal(t, Nil, id)
}
