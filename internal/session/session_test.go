package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = User{
	ID:        "u-1",
	Email:     "creator@example.com",
	Username:  "creator",
	FullName:  "Content Creator",
	IsActive:  true,
	CreatedAt: "2025-01-01T00:00:00Z",
	UpdatedAt: "2025-01-02T00:00:00Z",
}

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	sqlite, err := OpenSQLiteStorage(filepath.Join(t.TempDir(), "db", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   NewFileStorage(filepath.Join(t.TempDir(), "postsiva", "session.json")),
		"sqlite": sqlite,
	}
}

func TestStore_SaveRestoreClear(t *testing.T) {
	ctx := context.Background()
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(storage, &config.SessionConfig{TokenKey: "auth_token", UserKey: "auth_user"})

			assert.Nil(t, store.Restore(ctx))

			store.Save(ctx, "tok-1", testUser)
			got := store.Restore(ctx)
			require.NotNil(t, got)
			if diff := cmp.Diff(&Session{Token: "tok-1", User: testUser}, got); diff != "" {
				t.Errorf("restored session mismatch (-want +got):\n%s", diff)
			}

			store.Clear(ctx)
			assert.Nil(t, store.Restore(ctx))

			// clearing an empty store is fine
			store.Clear(ctx)
			assert.Nil(t, store.Restore(ctx))
		})
	}
}

func TestStore_RestoreCorruptUserClears(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"{not json", "null", `"just a string"`} {
		t.Run(raw, func(t *testing.T) {
			storage := NewMemoryStorage()
			require.NoError(t, storage.Set(ctx, "auth_token", "tok"))
			require.NoError(t, storage.Set(ctx, "auth_user", raw))

			store := NewStore(storage, nil)
			assert.Nil(t, store.Restore(ctx))

			_, ok, _ := storage.Get(ctx, "auth_token")
			assert.False(t, ok, "token must be cleared")
			_, ok, _ = storage.Get(ctx, "auth_user")
			assert.False(t, ok, "user must be cleared")

			// repair is idempotent
			assert.Nil(t, store.Restore(ctx))
		})
	}
}

func TestStore_RestoreWithOnlyOneKey(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, "auth_token", "tok"))

	store := NewStore(storage, nil)
	assert.Nil(t, store.Restore(ctx))

	_, ok, _ := storage.Get(ctx, "auth_token")
	assert.True(t, ok, "a lone token is not corruption")
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (failingStorage) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (failingStorage) Remove(context.Context, string) error      { return errors.New("disk on fire") }

func TestStore_SwallowsStorageErrors(t *testing.T) {
	ctx := context.Background()
	store := NewStore(failingStorage{}, nil)

	assert.NotPanics(t, func() {
		store.Save(ctx, "tok", testUser)
		store.Clear(ctx)
	})
	assert.Nil(t, store.Restore(ctx))
}

func TestStore_NilStorageIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, nil)
	store.Save(ctx, "tok", testUser)
	store.Clear(ctx)
	assert.Nil(t, store.Restore(ctx))
}

func TestFileStorage_RecoversFromGarbage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	fs := NewFileStorage(path)
	require.NoError(t, fs.Set(ctx, "a", "1"))
	require.NoError(t, writeFile(path, "garbage"))

	_, _, err := fs.Get(ctx, "a")
	assert.Error(t, err)

	require.NoError(t, fs.Set(ctx, "b", "2"))
	v, ok, err := fs.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	storage := NewRedisStorage(db, "postsiva:")

	mock.ExpectSet("postsiva:auth_token", "tok", 0).SetVal("OK")
	require.NoError(t, storage.Set(ctx, "auth_token", "tok"))

	mock.ExpectGet("postsiva:auth_token").SetVal("tok")
	v, ok, err := storage.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	mock.ExpectGet("postsiva:auth_user").RedisNil()
	_, ok, err = storage.Get(ctx, "auth_user")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectDel("postsiva:auth_token").SetVal(1)
	require.NoError(t, storage.Remove(ctx, "auth_token"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScope_PublishAndSubscribe(t *testing.T) {
	scope, publish := NewScope()
	assert.False(t, scope.IsAuthenticated())

	var seen []*Session
	unsubscribe := scope.Subscribe(func(s *Session) { seen = append(seen, s) })

	publish(&Session{Token: "tok", User: testUser})
	token, ok := scope.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	publish(nil)
	assert.False(t, scope.IsAuthenticated())

	unsubscribe()
	unsubscribe()
	publish(&Session{Token: "later"})

	require.Len(t, seen, 2)
	assert.Equal(t, "tok", seen[0].Token)
	assert.Nil(t, seen[1])
}

func TestScope_SessionIsACopy(t *testing.T) {
	scope, publish := NewScope()
	publish(&Session{Token: "tok", User: testUser})

	got := scope.Session()
	got.Token = "tampered"
	assert.Equal(t, "tok", scope.Session().Token)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	assert.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
