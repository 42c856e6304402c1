package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/signon/internal/auth"
	"github.com/daap14/signon/internal/password"
)

const ttl = 600 * time.Second

func TestSessionState_LoginThenLoad(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t)
	sess := newSession()

	u, err := auth.NewSessionState(sess, ttl, users, testHasher(t)).Login(ctx, "admin", "secret")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "admin", u.UserName)
	assert.Empty(t, u.PasswordHash)

	loaded, err := auth.NewSessionState(sess, ttl, users, testHasher(t)).TryLoadCurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "admin", loaded.UserName)
	assert.Empty(t, loaded.PasswordHash)
}

func TestSessionState_WrongPassword(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t)
	sess := newSession()
	state := auth.NewSessionState(sess, ttl, users, testHasher(t))

	u, err := state.Login(ctx, "admin", "wrong")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, sess.Dirty(), "failed login must not touch the session")

	authenticated, _ := sess.Namespace(auth.SessionNamespace).Bool("authenticated")
	assert.False(t, authenticated)

	calls := users.calls.Load()
	for i := 0; i < 2; i++ {
		u, err = state.TryLoadCurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, u)
	}
	assert.Equal(t, calls, users.calls.Load(), "anonymous resolution does not query the store")
}

func TestSessionState_UnknownUser(t *testing.T) {
	users := newUsers(t)
	sess := newSession()
	state := auth.NewSessionState(sess, ttl, users, testHasher(t), auth.WithDecoyHash(hashFor(t, "decoy")))

	u, err := state.Login(context.Background(), "nobody", "secret")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, sess.Dirty())
}

func TestSessionState_ResolutionIsMemoized(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t)
	sess := authenticatedSession("admin")
	state := auth.NewSessionState(sess, ttl, users, testHasher(t))

	first, err := state.TryLoadCurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	sess.Namespace(auth.SessionNamespace).Set("authenticated", false)

	second, err := state.TryLoadCurrentUser(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), users.calls.Load())
}

func TestSessionState_PartialLogout(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t)
	sess := authenticatedSession("admin")

	auth.NewSessionState(sess, ttl, users, testHasher(t)).Logout(false)

	ns := sess.Namespace(auth.SessionNamespace)
	name, ok := ns.String("userName")
	assert.True(t, ok)
	assert.Equal(t, "admin", name)
	authenticated, ok := ns.Bool("authenticated")
	assert.True(t, ok)
	assert.False(t, authenticated)

	fresh := auth.NewSessionState(sess, ttl, users, testHasher(t))
	u, err := fresh.TryLoadCurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, "admin", fresh.LastUserName())
}

func TestSessionState_FullLogout(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t)
	sess := authenticatedSession("admin")

	auth.NewSessionState(sess, ttl, users, testHasher(t)).Logout(true)

	assert.False(t, sess.HasNamespace(auth.SessionNamespace))

	fresh := auth.NewSessionState(sess, ttl, users, testHasher(t))
	u, err := fresh.TryLoadCurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = auth.NewSessionState(sess, ttl, users, testHasher(t)).Login(ctx, "admin", "secret")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, sess.HasNamespace(auth.SessionNamespace))
}

func TestSessionState_SetUser(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t)

	t.Run("nil forces anonymous", func(t *testing.T) {
		state := auth.NewSessionState(authenticatedSession("admin"), ttl, users, testHasher(t))
		state.SetUser(nil)

		u, err := state.TryLoadCurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("injected user wins", func(t *testing.T) {
		state := auth.NewSessionState(newSession(), ttl, users, testHasher(t))
		injected := &auth.User{UserName: "robot"}
		state.SetUser(injected)

		u, err := state.TryLoadCurrentUser(ctx)
		require.NoError(t, err)
		assert.Same(t, injected, u)
	})

	assert.Equal(t, int32(0), users.calls.Load())
}

func TestSessionState_StoreReturnsNoUser(t *testing.T) {
	ctx := context.Background()
	var calls int
	empty := auth.UserStoreFunc(func(context.Context, string) (*auth.User, error) {
		calls++
		return nil, nil
	})

	state := auth.NewSessionState(authenticatedSession("ghost"), ttl, empty, testHasher(t))
	for i := 0; i < 2; i++ {
		u, err := state.TryLoadCurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, u)
	}
	assert.Equal(t, 1, calls, "a missing user is memoized")

	sess := newSession()
	u, err := auth.NewSessionState(sess, ttl, empty, testHasher(t)).Login(ctx, "ghost", "secret")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, sess.Dirty())
}

func TestSessionState_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("hash configuration error", func(t *testing.T) {
		noSalt, err := password.NewHasher("", password.MinCost)
		require.NoError(t, err)

		sess := newSession()
		_, err = auth.NewSessionState(sess, ttl, newUsers(t), noSalt).Login(ctx, "admin", "secret")
		assert.ErrorIs(t, err, auth.ErrConfiguration)
		assert.False(t, sess.Dirty())
	})

	t.Run("store error", func(t *testing.T) {
		boom := errors.New("boom")
		failing := auth.UserStoreFunc(func(context.Context, string) (*auth.User, error) {
			return nil, boom
		})

		_, err := auth.NewSessionState(newSession(), ttl, failing, testHasher(t)).Login(ctx, "admin", "secret")
		assert.ErrorIs(t, err, boom)

		_, err = auth.NewSessionState(authenticatedSession("admin"), ttl, failing, testHasher(t)).TryLoadCurrentUser(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("unimplemented store", func(t *testing.T) {
		_, err := auth.NewSessionState(newSession(), ttl, auth.UnimplementedUserStore{}, testHasher(t)).Login(ctx, "admin", "secret")
		assert.ErrorIs(t, err, auth.ErrNotImplemented)
	})
}

func TestSessionState_TTL(t *testing.T) {
	sess := authenticatedSession("admin")
	auth.NewSessionState(sess, time.Hour, newUsers(t), testHasher(t))

	ns := sess.Namespace(auth.SessionNamespace)
	assert.WithinDuration(t, time.Now().Add(time.Hour), ns.ExpiresAt(), time.Minute)
}
