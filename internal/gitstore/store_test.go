package gitstore

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

func namespaceResource(name string) resource.Resource {
	return resource.Resource{
		APIVersion: store.NamespaceAPIVersion,
		Kind:       store.NamespaceKind,
		Metadata:   resource.Metadata{Name: name},
		Spec:       resource.NewGenericSpec(nil),
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	require.NoError(t, s.Put(lock, namespaceResource("default")))

	r := resource.Resource{
		APIVersion: "v1",
		Kind:       "ConfigMap",
		Metadata:   resource.Metadata{Namespace: "default", Name: "config"},
		Spec:       resource.NewGenericSpec(map[string]any{"key": "value"}),
	}
	require.NoError(t, s.Put(lock, r))

	got, ok, err := s.Get(lock, r.URI())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", got.Spec.Generic()["key"])
}

func TestStore_Put_RejectsMissingNamespace(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	r := resource.Resource{
		APIVersion: "v1",
		Kind:       "ConfigMap",
		Metadata:   resource.Metadata{Namespace: "missing", Name: "config"},
		Spec:       resource.NewGenericSpec(nil),
	}
	err = s.Put(lock, r)
	assert.ErrorAs(t, err, new(*resource.NamespaceNotFoundError))
}

func TestStore_PutCreatesACommit(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	require.NoError(t, s.Put(lock, namespaceResource("default")))

	head, err := s.repo.Head()
	require.NoError(t, err)
	assert.NotEqual(t, plumbing.ZeroHash, head.Hash())

	commit, err := s.repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Contains(t, commit.Message, "default")
}

func TestStore_DeleteRemovesFileAndCommits(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	require.NoError(t, s.Put(lock, namespaceResource("default")))
	r := resource.Resource{
		APIVersion: "v1", Kind: "ConfigMap",
		Metadata: resource.Metadata{Namespace: "default", Name: "config"},
		Spec:     resource.NewGenericSpec(nil),
	}
	require.NoError(t, s.Put(lock, r))

	existed, err := s.Delete(lock, r.URI())
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok, err := s.Get(lock, r.URI())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SearchMatchesAcrossNamespaces(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	require.NoError(t, s.Put(lock, namespaceResource("a")))
	require.NoError(t, s.Put(lock, namespaceResource("b")))
	require.NoError(t, s.Put(lock, resource.Resource{
		APIVersion: "v1", Kind: "ConfigMap",
		Metadata: resource.Metadata{Namespace: "a", Name: "c1"},
		Spec:     resource.NewGenericSpec(nil),
	}))
	require.NoError(t, s.Put(lock, resource.Resource{
		APIVersion: "v1", Kind: "ConfigMap",
		Metadata: resource.Metadata{Namespace: "b", Name: "c2"},
		Spec:     resource.NewGenericSpec(nil),
	}))

	uris, err := s.Search(lock, store.SearchRequest{Kind: "ConfigMap"})
	require.NoError(t, err)
	assert.Len(t, uris, 2)
}

func TestStore_ReopensExistingRepository(t *testing.T) {
	dir := t.TempDir()
	s1, err := New(dir)
	require.NoError(t, err)
	lock, release, err := s1.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	require.NoError(t, s1.Put(lock, namespaceResource("default")))
	release()

	s2, err := New(dir)
	require.NoError(t, err)
	lock2, release2, err := s2.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release2()

	namespaces, err := s2.Namespaces(lock2)
	require.NoError(t, err)
	assert.Len(t, namespaces, 1)
}
