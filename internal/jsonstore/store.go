// Package jsonstore is the reference ResourceStore implementation: one
// directory per namespace plus a sentinel directory for cluster-scoped
// resources, one JSON file per resource, atomic tempfile-then-rename
// writes — grounded on the teacher's internal/git/content_writer.go
// atomic-write pattern and internal/correlation's mutex-guarded in-memory
// bookkeeping.
package jsonstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

const clusterDir = "_cluster"

// Store is the on-disk JSON-directory ResourceStore.
type Store struct {
	baseDir string
	lock    *store.Lock
	log     logr.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxLockDuration sets the store lock's maxLockDuration policy.
func WithMaxLockDuration(d time.Duration) Option {
	return func(s *Store) { s.lock = store.NewLock(d) }
}

// WithLogger sets the logger used for write/delete diagnostics.
func WithLogger(log logr.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a Store rooted at baseDir, creating it if necessary.
func New(baseDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, clusterDir), 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: create base dir: %w", err)
	}
	s := &Store{baseDir: baseDir, lock: store.NewLock(0), log: logr.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Enter(req store.LockRequest, holder store.LockID) (store.LockID, func(), error) {
	return s.lock.ScopedEnter(req, holder)
}

func escapeAPIVersion(apiVersion string) string {
	return strings.ReplaceAll(apiVersion, "/", "~")
}

func (s *Store) namespaceDir(namespace string) string {
	if namespace == "" {
		return filepath.Join(s.baseDir, clusterDir)
	}
	return filepath.Join(s.baseDir, namespace)
}

func (s *Store) filePath(uri resource.URI) string {
	filename := fmt.Sprintf("%s_%s_%s.json", escapeAPIVersion(uri.APIVersion), uri.Kind, uri.Name)
	return filepath.Join(s.namespaceDir(uri.Namespace), filename)
}

func (s *Store) requireLock(lock store.LockID) {
	if !s.lock.CheckLock(lock) {
		panic("jsonstore: operation called with an invalid or expired LockID")
	}
}

// Put upserts r by URI, enforcing namespace referential integrity.
func (s *Store) Put(lock store.LockID, r resource.Resource) error {
	s.requireLock(lock)

	uri := r.URI()
	if uri.Namespaced() && !store.IsNamespaceType(uri) {
		namespaces, err := s.Namespaces(lock)
		if err != nil {
			return err
		}
		if !store.NamespaceExists(namespaces, uri.Namespace) {
			return &resource.NamespaceNotFoundError{URI: uri, Namespace: uri.Namespace}
		}
	}

	if err := os.MkdirAll(s.namespaceDir(uri.Namespace), 0o755); err != nil {
		return fmt.Errorf("jsonstore: create namespace dir: %w", err)
	}

	data, err := r.ToJSON()
	if err != nil {
		return fmt.Errorf("jsonstore: serialize %s: %w", uri, err)
	}

	path := s.filePath(uri)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("jsonstore: create tempfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonstore: write tempfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonstore: close tempfile: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonstore: rename tempfile: %w", err)
	}

	s.log.V(1).Info("wrote resource", "uri", uri.String())
	return nil
}

// Get returns the resource at uri.
func (s *Store) Get(lock store.LockID, uri resource.URI) (resource.Resource, bool, error) {
	s.requireLock(lock)

	data, err := os.ReadFile(s.filePath(uri))
	if err != nil {
		if os.IsNotExist(err) {
			return resource.Resource{}, false, nil
		}
		return resource.Resource{}, false, fmt.Errorf("jsonstore: read %s: %w", uri, err)
	}
	r, err := resource.FromJSON(data)
	if err != nil {
		return resource.Resource{}, false, fmt.Errorf("jsonstore: decode %s: %w", uri, err)
	}
	return r, true, nil
}

// Delete physically removes the resource at uri.
func (s *Store) Delete(lock store.LockID, uri resource.URI) (bool, error) {
	s.requireLock(lock)

	if store.IsNamespaceType(uri) {
		occupants, err := s.Search(lock, store.SearchRequest{Namespace: uri.Name})
		if err != nil {
			return false, err
		}
		if len(occupants) > 0 {
			return false, &resource.NamespaceNotEmptyError{Namespace: uri.Name}
		}
	}

	path := s.filePath(uri)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("jsonstore: stat %s: %w", uri, err)
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("jsonstore: remove %s: %w", uri, err)
	}

	dir := s.namespaceDir(uri.Namespace)
	if uri.Namespaced() && isEmptyDir(dir) {
		_ = os.Remove(dir)
	}
	return true, nil
}

func isEmptyDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) == 0
}

// Search returns URIs matching req across every namespace directory.
func (s *Store) Search(lock store.LockID, req store.SearchRequest) ([]resource.URI, error) {
	s.requireLock(lock)

	var results []resource.URI
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("jsonstore: read %s: %w", path, err)
		}
		r, err := resource.FromJSON(data)
		if err != nil {
			return fmt.Errorf("jsonstore: decode %s: %w", path, err)
		}
		if store.Matches(r, req) {
			results = append(results, r.URI())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resource.SortedURIs(results), nil
}

// Namespaces enumerates stored Namespace resources.
func (s *Store) Namespaces(lock store.LockID) ([]resource.Resource, error) {
	s.requireLock(lock)

	dir := s.namespaceDir("")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jsonstore: read cluster dir: %w", err)
	}

	var out []resource.Resource
	prefix := escapeAPIVersion(store.NamespaceAPIVersion) + "_" + store.NamespaceKind + "_"
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("jsonstore: read %s: %w", e.Name(), err)
		}
		r, err := resource.FromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("jsonstore: decode %s: %w", e.Name(), err)
		}
		out = append(out, r)
	}
	return out, nil
}
