package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/requester"
	"github.com/postsiva/postsiva-cli/internal/session"
	"github.com/postsiva/postsiva-cli/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var creator = session.User{
	ID:       "u-42",
	Email:    "creator@example.com",
	Username: "creator",
	FullName: "Content Creator",
	IsActive: true,
}

type fixture struct {
	orch    *Orchestrator
	scope   *session.Scope
	storage *session.MemoryStorage
	store   *session.Store
}

func newFixture(t *testing.T, handler http.HandlerFunc, autoRestore bool, seed func(*session.Store)) *fixture {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	apiCfg := &config.APIConfig{BaseURL: server.URL, Timeout: 5 * time.Second}
	scope, publish := session.NewScope()
	r := requester.NewHTTPRequester(requester.HTTPRequesterParams{
		APIConfig: apiCfg,
		Builder: requester.NewHTTPRequestBuilder(requester.HTTPRequestBuilderParams{
			APIConfig:   apiCfg,
			AuthManager: requester.NewBearerAuthManager(scope),
		}),
	})

	storage := session.NewMemoryStorage()
	store := session.NewStore(storage, nil)
	if seed != nil {
		seed(store)
	}

	orch := NewOrchestrator(OrchestratorParams{
		Client:  NewClient(r),
		Store:   store,
		Publish: publish,
		Config:  &config.AuthConfig{AutoRestore: autoRestore},
	})
	return &fixture{orch: orch, scope: scope, storage: storage, store: store}
}

func authOK(t *testing.T, wantPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{AccessToken: "jwt-1", TokenType: "bearer", User: creator})
	}
}

func TestOrchestrator_Login(t *testing.T) {
	var body map[string]any
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		authOK(t, "/auth/login")(w, r)
	}, false, nil)

	var seen []state.Status
	f.orch.Subscribe(func(s state.State[Identity]) { seen = append(seen, s.Status()) })

	resp, err := f.orch.Login(context.Background(), LoginRequest{Email: creator.Email, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", resp.AccessToken)
	assert.Equal(t, map[string]any{"email": creator.Email, "password": "pw"}, body)

	assert.Equal(t, []state.Status{state.StatusLoading, state.StatusSuccess}, seen)
	assert.True(t, f.orch.IsAuthenticated())
	assert.True(t, f.scope.IsAuthenticated())

	token, ok := f.orch.Token()
	assert.True(t, ok)
	assert.Equal(t, "jwt-1", token)

	persisted := f.store.Restore(context.Background())
	if diff := cmp.Diff(&session.Session{Token: "jwt-1", User: creator}, persisted); diff != "" {
		t.Errorf("persisted session mismatch (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_Signup(t *testing.T) {
	f := newFixture(t, authOK(t, "/auth/signup"), false, nil)

	_, err := f.orch.Signup(context.Background(), SignupRequest{
		Email: creator.Email, Username: creator.Username, FullName: creator.FullName, Password: "pw",
	})
	require.NoError(t, err)

	s, err := f.orch.RequireSession()
	require.NoError(t, err)
	assert.Equal(t, creator, s.User)
}

func TestOrchestrator_FailureIsFailClosed(t *testing.T) {
	var fail atomic.Bool
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		authOK(t, "/auth/login")(w, r)
	}, false, nil)

	ctx := context.Background()
	_, err := f.orch.Login(ctx, LoginRequest{Email: creator.Email, Password: "pw"})
	require.NoError(t, err)

	fail.Store(true)
	_, err = f.orch.Login(ctx, LoginRequest{Email: creator.Email, Password: "wrong"})

	var apiErr *requester.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Incorrect email or password", apiErr.Message)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Code)

	st := f.orch.State()
	assert.Equal(t, state.StatusError, st.Status())
	assert.Equal(t, apiErr, st.Err())
	assert.False(t, f.orch.IsAuthenticated())
	assert.False(t, f.scope.IsAuthenticated())

	_, err = f.orch.RequireSession()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestOrchestrator_FallbackMessages(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}, false, nil)

	_, err := f.orch.Signup(context.Background(), SignupRequest{Email: "x@example.com"})
	require.Error(t, err)
	assert.Equal(t, signupFallback, f.orch.State().Err().Message)

	_, err = f.orch.Login(context.Background(), LoginRequest{Email: "x@example.com"})
	require.Error(t, err)
	assert.Equal(t, loginFallback, f.orch.State().Err().Message)
}

func TestOrchestrator_AutoRestore(t *testing.T) {
	seed := func(store *session.Store) { store.Save(context.Background(), "stored", creator) }
	noServer := func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}

	f := newFixture(t, noServer, true, seed)
	assert.Equal(t, state.StatusSuccess, f.orch.State().Status())
	assert.True(t, f.scope.IsAuthenticated())
	token, _ := f.scope.Token()
	assert.Equal(t, "stored", token)

	f = newFixture(t, noServer, false, seed)
	assert.Equal(t, state.StatusIdle, f.orch.State().Status())
	assert.False(t, f.scope.IsAuthenticated())
	assert.True(t, f.orch.RestoreSession(context.Background()))
	assert.True(t, f.scope.IsAuthenticated())
}

func TestOrchestrator_RestoreCorruptSession(t *testing.T) {
	f := newFixture(t, nil, false, nil)
	ctx := context.Background()
	require.NoError(t, f.storage.Set(ctx, "auth_token", "tok"))
	require.NoError(t, f.storage.Set(ctx, "auth_user", "{broken"))

	assert.False(t, f.orch.RestoreSession(ctx))
	assert.Equal(t, state.StatusIdle, f.orch.State().Status())
	_, ok, _ := f.storage.Get(ctx, "auth_token")
	assert.False(t, ok)
}

func TestOrchestrator_Logout(t *testing.T) {
	seed := func(store *session.Store) { store.Save(context.Background(), "stored", creator) }
	f := newFixture(t, nil, true, seed)
	require.True(t, f.orch.IsAuthenticated())

	f.orch.Logout(context.Background())

	assert.Equal(t, state.StatusSuccess, f.orch.State().Status())
	assert.False(t, f.orch.IsAuthenticated())
	assert.False(t, f.scope.IsAuthenticated())
	assert.Nil(t, f.store.Restore(context.Background()))
}

func TestOrchestrator_ResetKeepsPersistedSession(t *testing.T) {
	seed := func(store *session.Store) { store.Save(context.Background(), "stored", creator) }
	f := newFixture(t, nil, true, seed)

	f.orch.Reset()

	assert.Equal(t, state.StatusIdle, f.orch.State().Status())
	assert.False(t, f.scope.IsAuthenticated())
	assert.NotNil(t, f.store.Restore(context.Background()))
}
