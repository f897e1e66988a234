package handle

import (
	"testing"

	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	Base
	destroyed bool
}

func newRoot() *fakeHandle {
	h := &fakeHandle{}
	_ = Init(&h.Base, h, KindInstance, nil, func(b *Base) {
		b.Owner().(*fakeHandle).destroyed = true
	})
	return h
}

func newChild(parent *fakeHandle, kind Kind) *fakeHandle {
	h := &fakeHandle{}
	_ = Init(&h.Base, h, kind, &parent.Base, func(b *Base) {
		b.Owner().(*fakeHandle).destroyed = true
	})
	return h
}

func TestInit_RootHasNoParent(t *testing.T) {
	root := newRoot()
	assert.Nil(t, root.Parent())
	assert.Equal(t, Live, root.State())
}

func TestInit_ChildRegistersWithParent(t *testing.T) {
	root := newRoot()
	child := newChild(root, KindSession)

	assert.Len(t, root.Children(), 1)
	assert.Same(t, &child.Base, root.Children()[0])
}

func TestInit_ParentFull(t *testing.T) {
	root := newRoot()
	for i := 0; i < MaxChildren; i++ {
		newChild(root, KindSession)
	}
	h := &fakeHandle{}
	err := Init(&h.Base, h, KindSession, &root.Base, nil)
	require.Error(t, err)
	assert.True(t, xrerr.Is(err, xrerr.LimitReached))
}

func TestInit_ParentNotLive(t *testing.T) {
	root := newRoot()
	require.NoError(t, Destroy(&root.Base))

	h := &fakeHandle{}
	err := Init(&h.Base, h, KindSession, &root.Base, nil)
	require.Error(t, err)
}

func TestValidate_RejectsWrongKind(t *testing.T) {
	root := newRoot()
	err := Validate(&root.Base, KindSession)
	require.Error(t, err)
}

func TestValidate_RejectsDestroyed(t *testing.T) {
	root := newRoot()
	child := newChild(root, KindSession)
	require.NoError(t, Destroy(&child.Base))
	err := Validate(&child.Base, KindSession)
	require.Error(t, err)
}

func TestDestroy_RecursiveBottomUp(t *testing.T) {
	root := newRoot()
	child := newChild(root, KindSession)
	grandchild := newChild(child, KindSpace)

	require.NoError(t, Destroy(&child.Base))

	assert.Equal(t, Destroyed, child.State())
	assert.Equal(t, Destroyed, grandchild.State())
	assert.True(t, child.destroyed)
	assert.True(t, grandchild.destroyed)
	assert.Empty(t, root.Children())
}

func TestDestroy_NilHandle(t *testing.T) {
	err := Destroy(nil)
	require.Error(t, err)
}
