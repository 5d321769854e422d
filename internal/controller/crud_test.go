package controller

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NiklasRosenstein/equilibrium/internal/control"
	"github.com/NiklasRosenstein/equilibrium/internal/jsonstore"
	"github.com/NiklasRosenstein/equilibrium/internal/resource"
)

type fileSpec struct {
	Path string `json:"path"`
}

func (fileSpec) Namespaced() bool { return true }

var fileType = resource.Type{APIVersion: "v1", Kind: "LocalFile"}

func decodeFileSpec(tree map[string]any) (any, error) {
	path, _ := tree["path"].(string)
	return fileSpec{Path: path}, nil
}

func encodeFileSpec(v any) (map[string]any, error) {
	return map[string]any{"path": v.(fileSpec).Path}, nil
}

// fakeHandler tracks which transitions ran, so tests assert on the state
// machine rather than on any real filesystem/network effect.
type fakeHandler struct {
	created, updated, deleted []string
	externallyDeleted         map[string]bool
}

func (h *fakeHandler) Create(spec any) (any, error) {
	s := spec.(fileSpec)
	h.created = append(h.created, s.Path)
	return map[string]any{"path": s.Path, "digest": "v1"}, nil
}

func (h *fakeHandler) Read(state any) (any, error) {
	m := state.(map[string]any)
	if h.externallyDeleted[m["path"].(string)] {
		return Deleted, nil
	}
	return state, nil
}

func (h *fakeHandler) Update(spec any, state any) (any, error) {
	s := spec.(fileSpec)
	h.updated = append(h.updated, s.Path)
	return map[string]any{"path": s.Path, "digest": "v2"}, nil
}

func (h *fakeHandler) Delete(state any) (any, error) {
	m := state.(map[string]any)
	h.deleted = append(h.deleted, m["path"].(string))
	return Deleted, nil
}

func newTestCtx(t *testing.T) *control.Context {
	t.Helper()
	backing, err := jsonstore.New(t.TempDir())
	require.NoError(t, err)
	ctx, err := control.NewContext(backing)
	require.NoError(t, err)
	require.NoError(t, ctx.Types.Register(fileType, control.SpecCodec{
		SpecType: fileSpec{},
		Decode:   decodeFileSpec,
		Encode:   encodeFileSpec,
	}))
	_, err = ctx.Put(resource.Resource{
		APIVersion: "v1", Kind: "Namespace",
		Metadata: resource.Metadata{Name: "default"},
		Spec:     resource.NewGenericSpec(nil),
	})
	require.NoError(t, err)
	return ctx
}

func TestCRUDController_CreatesStateForNewResource(t *testing.T) {
	ctx := newTestCtx(t)
	h := &fakeHandler{externallyDeleted: map[string]bool{}}
	ctrl := NewCRUDController(fileType, h, ctx.Types, logr.Discard())
	ctx.Controllers.RegisterResourceController(ctrl)

	_, err := ctx.Put(resource.Resource{
		APIVersion: "v1", Kind: "LocalFile",
		Metadata: resource.Metadata{Namespace: "default", Name: "f1"},
		Spec:     resource.NewGenericSpec(map[string]any{"path": "/tmp/f1"}),
	})
	require.NoError(t, err)

	require.NoError(t, ctx.Reconcile())
	assert.Equal(t, []string{"/tmp/f1"}, h.created)

	uri := resource.URI{APIVersion: "v1", Kind: "LocalFile", Namespace: "default", Name: "f1"}
	got, ok, err := ctx.Get(uri)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", got.State["digest"])
}

func TestCRUDController_UpdatesExistingState(t *testing.T) {
	ctx := newTestCtx(t)
	h := &fakeHandler{externallyDeleted: map[string]bool{}}
	ctrl := NewCRUDController(fileType, h, ctx.Types, logr.Discard())
	ctx.Controllers.RegisterResourceController(ctrl)

	_, err := ctx.Put(resource.Resource{
		APIVersion: "v1", Kind: "LocalFile",
		Metadata: resource.Metadata{Namespace: "default", Name: "f1"},
		Spec:     resource.NewGenericSpec(map[string]any{"path": "/tmp/f1"}),
	})
	require.NoError(t, err)

	require.NoError(t, ctx.Reconcile())
	require.NoError(t, ctx.Reconcile())

	assert.Equal(t, []string{"/tmp/f1"}, h.created)
	assert.Equal(t, []string{"/tmp/f1"}, h.updated)
}

func TestCRUDController_RecreatesAfterExternalDeletion(t *testing.T) {
	ctx := newTestCtx(t)
	h := &fakeHandler{externallyDeleted: map[string]bool{}}
	ctrl := NewCRUDController(fileType, h, ctx.Types, logr.Discard())
	ctx.Controllers.RegisterResourceController(ctrl)

	_, err := ctx.Put(resource.Resource{
		APIVersion: "v1", Kind: "LocalFile",
		Metadata: resource.Metadata{Namespace: "default", Name: "f1"},
		Spec:     resource.NewGenericSpec(map[string]any{"path": "/tmp/f1"}),
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Reconcile())
	assert.Len(t, h.created, 1)

	h.externallyDeleted["/tmp/f1"] = true
	require.NoError(t, ctx.Reconcile()) // read() reports Deleted -> treated as no-state

	h.externallyDeleted["/tmp/f1"] = false
	require.NoError(t, ctx.Reconcile()) // no-state + no deletion marker -> create again

	assert.Len(t, h.created, 2)
}

func TestCRUDController_DeletesOnDeletionMarker(t *testing.T) {
	ctx := newTestCtx(t)
	h := &fakeHandler{externallyDeleted: map[string]bool{}}
	ctrl := NewCRUDController(fileType, h, ctx.Types, logr.Discard())
	ctx.Controllers.RegisterResourceController(ctrl)

	_, err := ctx.Put(resource.Resource{
		APIVersion: "v1", Kind: "LocalFile",
		Metadata: resource.Metadata{Namespace: "default", Name: "f1"},
		Spec:     resource.NewGenericSpec(map[string]any{"path": "/tmp/f1"}),
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Reconcile())
	require.Len(t, h.created, 1)

	now := time.Now()
	_, err = ctx.Put(resource.Resource{
		APIVersion:     "v1",
		Kind:           "LocalFile",
		Metadata:       resource.Metadata{Namespace: "default", Name: "f1"},
		Spec:           resource.NewGenericSpec(map[string]any{"path": "/tmp/f1"}),
		DeletionMarker: &now,
	})
	require.NoError(t, err)

	require.NoError(t, ctx.Reconcile())
	assert.Equal(t, []string{"/tmp/f1"}, h.deleted)

	uri := resource.URI{APIVersion: "v1", Kind: "LocalFile", Namespace: "default", Name: "f1"}
	_, ok, err := ctx.Get(uri)
	require.NoError(t, err)
	assert.False(t, ok, "resource should be physically removed once Delete() reports Deleted")
}
