package sqlstore

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return New(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestStore_Get_ReturnsNotFoundAsOkFalse(t *testing.T) {
	s, mock := newMockStore(t)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	mock.ExpectQuery("SELECT (.+) FROM resources").WillReturnRows(
		sqlmock.NewRows([]string{"api_version", "kind", "namespace", "name", "document"}))

	_, ok, err := s.Get(lock, resource.URI{APIVersion: "v1", Kind: "ConfigMap", Namespace: "default", Name: "missing"})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_DecodesDocument(t *testing.T) {
	s, mock := newMockStore(t)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	doc := `{"apiVersion":"v1","kind":"ConfigMap","metadata":{"namespace":"default","name":"config"},"spec":{"key":"value"}}`
	mock.ExpectQuery("SELECT (.+) FROM resources").WillReturnRows(
		sqlmock.NewRows([]string{"api_version", "kind", "namespace", "name", "document"}).
			AddRow("v1", "ConfigMap", "default", "config", []byte(doc)))

	got, ok, err := s.Get(lock, resource.URI{APIVersion: "v1", Kind: "ConfigMap", Namespace: "default", Name: "config"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", got.Spec.Generic()["key"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put_ReturnsNotImplemented(t *testing.T) {
	s, _ := newMockStore(t)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	err = s.Put(lock, resource.Resource{APIVersion: "v1", Kind: "ConfigMap"})
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestStore_Delete_ReturnsNotImplemented(t *testing.T) {
	s, _ := newMockStore(t)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	_, err = s.Delete(lock, resource.URI{APIVersion: "v1", Kind: "ConfigMap", Name: "x"})
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestStore_Namespaces_DecodesRows(t *testing.T) {
	s, mock := newMockStore(t)
	lock, release, err := s.Enter(store.LockRequest{Block: true}, "")
	require.NoError(t, err)
	defer release()

	doc := `{"apiVersion":"v1","kind":"Namespace","metadata":{"name":"default"},"spec":{}}`
	mock.ExpectQuery("SELECT (.+) FROM resources").WillReturnRows(
		sqlmock.NewRows([]string{"api_version", "kind", "namespace", "name", "document"}).
			AddRow("v1", "Namespace", "", "default", []byte(doc)))

	namespaces, err := s.Namespaces(lock)
	require.NoError(t, err)
	require.Len(t, namespaces, 1)
	assert.Equal(t, "default", namespaces[0].Metadata.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
