// Package sqlstore is a contract-only ResourceStore skeleton backed by
// jmoiron/sqlx and lib/pq, grounded on jordigilh-kubernaut's
// sqlx.DB/sqlmock-based repositories. The spec scopes SQL backends out
// beyond proving the ResourceStore contract is implementable against
// one, so only the read paths (Get, Namespaces, Search) and lock
// acquisition are implemented here; the write paths return
// ErrNotImplemented rather than a half-built transaction scheme — see
// DESIGN.md.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

// ErrNotImplemented is returned by the write paths this skeleton does
// not implement.
var ErrNotImplemented = errors.New("sqlstore: not implemented")

type row struct {
	APIVersion string `db:"api_version"`
	Kind       string `db:"kind"`
	Namespace  string `db:"namespace"`
	Name       string `db:"name"`
	Document   []byte `db:"document"`
}

// Store is a sqlx-backed ResourceStore over the schema in schema.sql.
// Only Get, Search and Namespaces are implemented; Put and Delete return
// ErrNotImplemented.
type Store struct {
	db   *sqlx.DB
	lock *store.Lock
}

// Open connects to a Postgres DSN via lib/pq and wraps it in an sqlx.DB.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}
	return New(db), nil
}

// New wraps an already-connected sqlx.DB, letting tests inject a
// sqlmock-backed connection instead of a real Postgres instance.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, lock: store.NewLock(0)}
}

func (s *Store) Enter(req store.LockRequest, holder store.LockID) (store.LockID, func(), error) {
	return s.lock.ScopedEnter(req, holder)
}

func (s *Store) requireLock(lock store.LockID) {
	if !s.lock.CheckLock(lock) {
		panic("sqlstore: operation called with an invalid or expired LockID")
	}
}

// Put is unimplemented: see package doc.
func (s *Store) Put(lock store.LockID, r resource.Resource) error {
	s.requireLock(lock)
	return ErrNotImplemented
}

// Delete is unimplemented: see package doc.
func (s *Store) Delete(lock store.LockID, uri resource.URI) (bool, error) {
	s.requireLock(lock)
	return false, ErrNotImplemented
}

// Get reads the resource at uri from the resources table.
func (s *Store) Get(lock store.LockID, uri resource.URI) (resource.Resource, bool, error) {
	s.requireLock(lock)

	var r row
	err := s.db.Get(&r, `SELECT api_version, kind, namespace, name, document FROM resources
		WHERE api_version = $1 AND kind = $2 AND namespace = $3 AND name = $4`,
		uri.APIVersion, uri.Kind, uri.Namespace, uri.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return resource.Resource{}, false, nil
	}
	if err != nil {
		return resource.Resource{}, false, fmt.Errorf("sqlstore: get %s: %w", uri, err)
	}
	out, err := resource.FromJSON(r.Document)
	if err != nil {
		return resource.Resource{}, false, fmt.Errorf("sqlstore: decode %s: %w", uri, err)
	}
	return out, true, nil
}

// Search filters the resources table by req's non-empty fields.
func (s *Store) Search(lock store.LockID, req store.SearchRequest) ([]resource.URI, error) {
	s.requireLock(lock)

	query := `SELECT api_version, kind, namespace, name, document FROM resources WHERE 1=1`
	var args []any
	if req.APIVersion != "" {
		args = append(args, req.APIVersion)
		query += fmt.Sprintf(" AND api_version = $%d", len(args))
	}
	if req.Kind != "" {
		args = append(args, req.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if req.Name != "" {
		args = append(args, req.Name)
		query += fmt.Sprintf(" AND name = $%d", len(args))
	}
	switch req.Namespace {
	case "":
	case store.NamespaceNone:
		query += " AND namespace = ''"
	default:
		args = append(args, req.Namespace)
		query += fmt.Sprintf(" AND namespace = $%d", len(args))
	}

	var rows []row
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: search: %w", err)
	}

	var out []resource.URI
	for _, r := range rows {
		res, err := resource.FromJSON(r.Document)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: decode row: %w", err)
		}
		if len(req.Labels) > 0 && !res.Metadata.HasLabels(req.Labels) {
			continue
		}
		out = append(out, res.URI())
	}
	return resource.SortedURIs(out), nil
}

// Namespaces enumerates stored Namespace resources.
func (s *Store) Namespaces(lock store.LockID) ([]resource.Resource, error) {
	s.requireLock(lock)

	var rows []row
	err := s.db.Select(&rows, `SELECT api_version, kind, namespace, name, document FROM resources
		WHERE api_version = $1 AND kind = $2`, store.NamespaceAPIVersion, store.NamespaceKind)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: namespaces: %w", err)
	}

	out := make([]resource.Resource, 0, len(rows))
	for _, r := range rows {
		res, err := resource.FromJSON(r.Document)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: decode namespace row: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}
