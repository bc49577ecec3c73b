package authsession

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmdash/crmdash/internal/cli/auth"
	"github.com/crmdash/crmdash/internal/cli/client"
)

type recordedCall struct {
	req   client.Request
	token string
}

// fakeGateway records every call and answers through handler
type fakeGateway struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(req client.Request, token string) (json.RawMessage, error)
}

func (f *fakeGateway) Execute(ctx context.Context, req client.Request, token string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{req: req, token: token})
	f.mu.Unlock()
	return f.handler(req, token)
}

func (f *fakeGateway) lastCall(t *testing.T) recordedCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func respond(payload string) func(client.Request, string) (json.RawMessage, error) {
	return func(client.Request, string) (json.RawMessage, error) {
		return json.RawMessage(payload), nil
	}
}

func fail(err error) func(client.Request, string) (json.RawMessage, error) {
	return func(client.Request, string) (json.RawMessage, error) {
		return nil, err
	}
}

// brokenStore fails every operation with err
type brokenStore struct {
	err error
}

func (b brokenStore) Put(string) error     { return b.err }
func (b brokenStore) Get() (string, error) { return "", b.err }
func (b brokenStore) Clear() error         { return b.err }

func storedToken(t *testing.T, store auth.TokenStore) (string, bool) {
	t.Helper()
	token, err := store.Get()
	if errors.Is(err, auth.ErrNoCredential) {
		return "", false
	}
	require.NoError(t, err)
	return token, true
}

func TestLogin_Success(t *testing.T) {
	for _, email := range []string{"a@b.com", "michael.scott@dundermifflin.com", "  padded@example.com "} {
		t.Run(email, func(t *testing.T) {
			store := auth.NewMemoryStore()
			gw := &fakeGateway{handler: respond(`{"login":{"accessToken":"tok-123"}}`)}
			m := New(store, gw, zerolog.Nop())

			outcome := m.Login(context.Background(), email)

			assert.Equal(t, AuthOutcome{Success: true, RedirectTo: RedirectHome}, outcome)
			token, ok := storedToken(t, store)
			require.True(t, ok)
			assert.Equal(t, "tok-123", token)

			require.Len(t, gw.calls, 1, "login must not fetch identity")
			call := gw.lastCall(t)
			assert.Equal(t, "Login", call.req.OperationName)
			assert.Empty(t, call.token, "login is sent unauthenticated")
			assert.Contains(t, call.req.Query, "login(loginInput:")
			assert.Equal(t, map[string]any{"email": strings.TrimSpace(email)}, call.req.Variables)
		})
	}
}

func TestLogin_ReplacesExistingCredential(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.Put("old"))
	m := New(store, &fakeGateway{handler: respond(`{"login":{"accessToken":"new"}}`)}, zerolog.Nop())

	outcome := m.Login(context.Background(), "a@b.com")
	require.True(t, outcome.Success)

	token, ok := storedToken(t, store)
	require.True(t, ok)
	assert.Equal(t, "new", token)
}

func TestLogin_FileStoreWithNullContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0600))
	store := auth.NewFileStoreAt(path, "")
	m := New(store, &fakeGateway{handler: respond(`{"login":{"accessToken":"tok"}}`)}, zerolog.Nop())

	var outcome AuthOutcome
	require.NotPanics(t, func() {
		outcome = m.Login(context.Background(), "a@b.com")
	})
	assert.Equal(t, AuthOutcome{Success: true, RedirectTo: RedirectHome}, outcome)

	token, ok := storedToken(t, store)
	require.True(t, ok)
	assert.Equal(t, "tok", token)
}

func TestLogin_FailureLeavesStoreUntouched(t *testing.T) {
	tests := []struct {
		name        string
		handler     func(client.Request, string) (json.RawMessage, error)
		wantMessage string
		wantName    string
	}{
		{
			name:        "unauthenticated",
			handler:     fail(&client.RemoteError{StatusCode: client.CodeUnauthenticated, Message: "Invalid email or password"}),
			wantMessage: "Invalid email or password",
			wantName:    client.CodeUnauthenticated,
		},
		{
			name:        "network error",
			handler:     fail(&client.RemoteError{StatusCode: client.CodeNetworkError, Message: "connection refused"}),
			wantMessage: "connection refused",
			wantName:    client.CodeNetworkError,
		},
		{
			name:        "message only",
			handler:     fail(&client.RemoteError{Message: "user is locked"}),
			wantMessage: "user is locked",
			wantName:    DefaultLoginErrorName,
		},
		{
			name:        "code only",
			handler:     fail(&client.RemoteError{StatusCode: client.CodeBadRequest}),
			wantMessage: DefaultLoginErrorMessage,
			wantName:    client.CodeBadRequest,
		},
		{
			name:        "plain error",
			handler:     fail(errors.New("dial tcp: timeout")),
			wantMessage: "dial tcp: timeout",
			wantName:    DefaultLoginErrorName,
		},
		{
			name:        "empty access token",
			handler:     respond(`{"login":{"accessToken":""}}`),
			wantMessage: errEmptyAccessToken.Error(),
			wantName:    DefaultLoginErrorName,
		},
		{
			name:        "missing login field",
			handler:     respond(`{"somethingElse":true}`),
			wantMessage: errEmptyAccessToken.Error(),
			wantName:    DefaultLoginErrorName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := auth.NewMemoryStore()
			m := New(store, &fakeGateway{handler: tt.handler}, zerolog.Nop())

			outcome := m.Login(context.Background(), "a@b.com")

			assert.False(t, outcome.Success)
			assert.Empty(t, outcome.RedirectTo)
			require.NotNil(t, outcome.Error)
			assert.Equal(t, tt.wantMessage, outcome.Error.Message)
			assert.Equal(t, tt.wantName, outcome.Error.Name)

			_, ok := storedToken(t, store)
			assert.False(t, ok, "store must remain empty")
		})
	}
}

func TestLogin_FailureKeepsExistingCredential(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.Put("existing"))
	m := New(store, &fakeGateway{handler: fail(&client.RemoteError{StatusCode: client.CodeUnauthenticated})}, zerolog.Nop())

	outcome := m.Login(context.Background(), "a@b.com")
	require.False(t, outcome.Success)

	token, ok := storedToken(t, store)
	require.True(t, ok)
	assert.Equal(t, "existing", token)
}

func TestLogin_ExactFallbackOutcome(t *testing.T) {
	store := auth.NewMemoryStore()
	m := New(store, &fakeGateway{handler: fail(&client.RemoteError{})}, zerolog.Nop())

	outcome := m.Login(context.Background(), "a@b.com")

	assert.Equal(t, AuthOutcome{
		Success: false,
		Error: &LoginError{
			Message: "Login failed",
			Name:    "Invalid email or password",
		},
	}, outcome)
}

func TestLogin_EmptyEmailSkipsNetwork(t *testing.T) {
	gw := &fakeGateway{handler: respond(`{"login":{"accessToken":"tok"}}`)}
	m := New(auth.NewMemoryStore(), gw, zerolog.Nop())

	outcome := m.Login(context.Background(), "   ")

	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, errEmptyEmail.Error(), outcome.Error.Message)
	assert.Empty(t, gw.calls)
}

func TestLogin_StoreWriteFailure(t *testing.T) {
	m := New(brokenStore{err: errors.New("keychain locked")}, &fakeGateway{handler: respond(`{"login":{"accessToken":"tok"}}`)}, zerolog.Nop())

	outcome := m.Login(context.Background(), "a@b.com")

	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, "keychain locked", outcome.Error.Message)
	assert.Equal(t, DefaultLoginErrorName, outcome.Error.Name)
}

func TestLogout_Idempotent(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.Put("tok"))
	gw := &fakeGateway{handler: fail(errors.New("should not be called"))}
	m := New(store, gw, zerolog.Nop())

	first := m.Logout(context.Background())
	second := m.Logout(context.Background())

	want := AuthOutcome{Success: true, RedirectTo: RedirectLogin}
	assert.Equal(t, want, first)
	assert.Equal(t, want, second)
	_, ok := storedToken(t, store)
	assert.False(t, ok)
	assert.Empty(t, gw.calls, "logout performs no network call")
}

func TestLogout_StoreFailureStillReportsSuccess(t *testing.T) {
	m := New(brokenStore{err: errors.New("boom")}, &fakeGateway{}, zerolog.Nop())

	outcome := m.Logout(context.Background())

	assert.Equal(t, AuthOutcome{Success: true, RedirectTo: RedirectLogin}, outcome)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		handler func(client.Request, string) (json.RawMessage, error)
		want    CheckOutcome
	}{
		{
			name:    "probe succeeds",
			handler: respond(`{"me":{"name":"Michael Scott"}}`),
			want:    CheckOutcome{Authenticated: true, RedirectTo: RedirectHome},
		},
		{
			name:    "unauthenticated",
			handler: fail(&client.RemoteError{StatusCode: client.CodeUnauthenticated}),
			want:    CheckOutcome{Authenticated: false, RedirectTo: RedirectLogin},
		},
		{
			name:    "network error",
			handler: fail(&client.RemoteError{StatusCode: client.CodeNetworkError}),
			want:    CheckOutcome{Authenticated: false, RedirectTo: RedirectLogin},
		},
		{
			name:    "null user",
			handler: respond(`{"me":null}`),
			want:    CheckOutcome{Authenticated: false, RedirectTo: RedirectLogin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := auth.NewMemoryStore()
			require.NoError(t, store.Put("tok"))
			gw := &fakeGateway{handler: tt.handler}
			m := New(store, gw, zerolog.Nop())

			assert.Equal(t, tt.want, m.Check(context.Background()))

			call := gw.lastCall(t)
			assert.Equal(t, "Me", call.req.OperationName)
			assert.Equal(t, "tok", call.token)

			token, ok := storedToken(t, store)
			require.True(t, ok, "check must never clear the credential")
			assert.Equal(t, "tok", token)
		})
	}
}

func TestCheck_WithoutCredentialSendsNoToken(t *testing.T) {
	gw := &fakeGateway{handler: fail(&client.RemoteError{StatusCode: client.CodeUnauthenticated})}
	m := New(auth.NewMemoryStore(), gw, zerolog.Nop())

	assert.False(t, m.Check(context.Background()).Authenticated)
	assert.Empty(t, gw.lastCall(t).token)
}

func TestOnError(t *testing.T) {
	m := New(auth.NewMemoryStore(), &fakeGateway{}, zerolog.Nop())

	unauth := &client.RemoteError{StatusCode: client.CodeUnauthenticated}
	assert.Equal(t, ErrorDirective{Logout: true}, m.OnError(unauth))

	other := &client.RemoteError{StatusCode: "OTHER"}
	directive := m.OnError(other)
	assert.False(t, directive.Logout)
	assert.Same(t, other, directive.Error)

	plain := errors.New("plain")
	assert.Equal(t, ErrorDirective{Error: plain}, m.OnError(plain))
}

func TestOnError_PerformsNoIO(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.Put("tok"))
	gw := &fakeGateway{}
	m := New(store, gw, zerolog.Nop())

	m.OnError(&client.RemoteError{StatusCode: client.CodeUnauthenticated})

	assert.Empty(t, gw.calls)
	_, ok := storedToken(t, store)
	assert.True(t, ok, "onError only decides, the caller logs out")
}

func TestEnforce(t *testing.T) {
	t.Run("unauthenticated clears the session", func(t *testing.T) {
		store := auth.NewMemoryStore()
		require.NoError(t, store.Put("tok"))
		m := New(store, &fakeGateway{}, zerolog.Nop())

		cause := &client.RemoteError{StatusCode: client.CodeUnauthenticated, Message: "jwt expired"}
		err := m.Enforce(context.Background(), cause)

		require.ErrorIs(t, err, ErrSessionExpired)
		assert.True(t, client.IsUnauthenticated(err))
		_, ok := storedToken(t, store)
		assert.False(t, ok)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		store := auth.NewMemoryStore()
		require.NoError(t, store.Put("tok"))
		m := New(store, &fakeGateway{}, zerolog.Nop())

		cause := &client.RemoteError{StatusCode: client.CodeInternal}
		err := m.Enforce(context.Background(), cause)

		assert.Same(t, cause, err)
		_, ok := storedToken(t, store)
		assert.True(t, ok)
	})

	t.Run("nil", func(t *testing.T) {
		m := New(auth.NewMemoryStore(), &fakeGateway{}, zerolog.Nop())
		assert.NoError(t, m.Enforce(context.Background(), nil))
	})
}

func TestGetIdentity(t *testing.T) {
	const identityPayload = `{"me":{"id":"01J0","name":"Michael Scott","email":"michael.scott@dundermifflin.com","phone":"+1 570 555 0100","jobTitle":"Regional Manager","timezone":"America/New_York","avatarUrl":"https://example.com/m.png"}}`

	t.Run("with credential sends bearer", func(t *testing.T) {
		store := auth.NewMemoryStore()
		require.NoError(t, store.Put("tok"))
		gw := &fakeGateway{handler: respond(identityPayload)}
		m := New(store, gw, zerolog.Nop())

		identity, ok := m.GetIdentity(context.Background())
		require.True(t, ok)
		assert.Equal(t, Identity{
			ID:        "01J0",
			Name:      "Michael Scott",
			Email:     "michael.scott@dundermifflin.com",
			Phone:     "+1 570 555 0100",
			JobTitle:  "Regional Manager",
			Timezone:  "America/New_York",
			AvatarURL: "https://example.com/m.png",
		}, identity)

		call := gw.lastCall(t)
		assert.Equal(t, "tok", call.token)
		assert.Contains(t, call.req.Query, "avatarUrl")
	})

	t.Run("without credential still queries", func(t *testing.T) {
		gw := &fakeGateway{handler: respond(identityPayload)}
		m := New(auth.NewMemoryStore(), gw, zerolog.Nop())

		identity, ok := m.GetIdentity(context.Background())
		require.True(t, ok)
		assert.Equal(t, "Michael Scott", identity.Name)
		assert.Empty(t, gw.lastCall(t).token)
	})

	t.Run("failure returns nothing", func(t *testing.T) {
		gw := &fakeGateway{handler: fail(&client.RemoteError{StatusCode: client.CodeUnauthenticated})}
		m := New(auth.NewMemoryStore(), gw, zerolog.Nop())

		identity, ok := m.GetIdentity(context.Background())
		assert.False(t, ok)
		assert.Equal(t, Identity{}, identity)
		assert.Len(t, gw.calls, 1)
	})

	t.Run("unreadable store proceeds unauthenticated", func(t *testing.T) {
		gw := &fakeGateway{handler: respond(identityPayload)}
		m := New(brokenStore{err: errors.New("keychain unavailable")}, gw, zerolog.Nop())

		_, ok := m.GetIdentity(context.Background())
		assert.True(t, ok)
		assert.Empty(t, gw.lastCall(t).token)
	})
}

// sessionGateway behaves like the real endpoint: it issues one token and
// accepts only that token for me queries.
func sessionGateway(token string) *fakeGateway {
	return &fakeGateway{handler: func(req client.Request, bearer string) (json.RawMessage, error) {
		switch req.OperationName {
		case "Login":
			return json.RawMessage(`{"login":{"accessToken":"` + token + `"}}`), nil
		case "Me":
			if bearer != token {
				return nil, &client.RemoteError{StatusCode: client.CodeUnauthenticated, Message: "Unauthorized"}
			}
			return json.RawMessage(`{"me":{"id":"1","name":"Jim Halpert","email":"a@b.com"}}`), nil
		}
		return nil, &client.RemoteError{StatusCode: client.CodeBadRequest}
	}}
}

func TestScenario_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore()
	gw := sessionGateway("session-token")
	m := New(store, gw, zerolog.Nop())

	require.Equal(t, AuthOutcome{Success: true, RedirectTo: RedirectHome}, m.Login(ctx, "a@b.com"))
	token, ok := storedToken(t, store)
	require.True(t, ok)
	assert.Equal(t, "session-token", token)

	assert.Equal(t, CheckOutcome{Authenticated: true, RedirectTo: RedirectHome}, m.Check(ctx))

	identity, ok := m.GetIdentity(ctx)
	require.True(t, ok)
	assert.Equal(t, "Jim Halpert", identity.Name)
	assert.Equal(t, "a@b.com", identity.Email)

	assert.Equal(t, AuthOutcome{Success: true, RedirectTo: RedirectLogin}, m.Logout(ctx))
	_, ok = storedToken(t, store)
	assert.False(t, ok)

	assert.Equal(t, CheckOutcome{Authenticated: false, RedirectTo: RedirectLogin}, m.Check(ctx))

	calls := len(gw.calls)
	_, ok = m.GetIdentity(ctx)
	assert.False(t, ok)
	require.Len(t, gw.calls, calls+1, "identity is still attempted without a credential")
	assert.Empty(t, gw.lastCall(t).token)
}

func TestConcurrentLoginLogout(t *testing.T) {
	store := auth.NewMemoryStore()
	m := New(store, sessionGateway("tok"), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Login(context.Background(), "a@b.com")
		}()
		go func() {
			defer wg.Done()
			m.Logout(context.Background())
		}()
	}
	wg.Wait()

	token, ok := storedToken(t, store)
	if ok {
		assert.Equal(t, "tok", token)
	}
}
