package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lateAckStore commits the first password update and then reports a
// deadline, as a driver does when the reply is lost after the commit.
type lateAckStore struct {
	store.Store
	fired atomic.Bool
}

func (s *lateAckStore) Users() store.Users {
	return lateAckUsers{Users: s.Store.Users(), fired: &s.fired}
}

type lateAckUsers struct {
	store.Users
	fired *atomic.Bool
}

func (u lateAckUsers) UpdatePassword(ctx context.Context, userID string, expectedVersion int64, hash string, history []string, at time.Time) error {
	if err := u.Users.UpdatePassword(ctx, userID, expectedVersion, hash, history, at); err != nil {
		return err
	}
	if u.fired.CompareAndSwap(false, true) {
		return context.DeadlineExceeded
	}
	return nil
}

func TestUpdatePasswordWithHistory_ThenReuseIsRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, testEmail)

	for _, pw := range []string{"Second#Pass22", "Third#Pass33"} {
		require.NoError(t, env.passwords.UpdatePasswordWithHistory(ctx, u.ID, pw))
		require.False(t, env.passwords.CheckReuse(ctx, u.ID, pw))
	}
	require.True(t, env.passwords.CheckReuse(ctx, u.ID, "Never#Used77"))
}

func TestUpdatePasswordWithHistory_LostAcknowledgement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, testEmail)
	before := env.getUser(t, u.ID)

	passwords := &PasswordService{
		Store:  &lateAckStore{Store: env.store},
		Hasher: env.hasher,
		Policy: env.passwords.Policy,
		Now:    env.clock.now,
	}
	require.NoError(t, passwords.UpdatePasswordWithHistory(ctx, u.ID, "Second#Pass22"))

	after := env.getUser(t, u.ID)
	assert.True(t, env.hasher.Matches("Second#Pass22", after.PasswordHash))
	require.Len(t, after.PasswordHistory, 1, "the new hash is not pushed onto its own history")
	assert.True(t, env.hasher.Matches(testPassword, after.PasswordHistory[0]))
	assert.Equal(t, before.Version+1, after.Version, "written exactly once")
}

func TestPasswordHistory_EvictsOldest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	// p1 is the registration password; three changes leave history
	// [h1, h2, h3] with pc current.
	u := env.register(t, testEmail)
	p1 := testPassword
	for _, pw := range []string{"Second#Pass22", "Third#Pass33", "Current#Pass44"} {
		require.NoError(t, env.passwords.UpdatePasswordWithHistory(ctx, u.ID, pw))
	}

	before := env.getUser(t, u.ID)
	require.Len(t, before.PasswordHistory, 3)
	require.True(t, env.hasher.Matches(p1, before.PasswordHistory[0]))
	require.False(t, env.passwords.CheckReuse(ctx, u.ID, p1), "oldest history entry still blocks")

	require.NoError(t, env.passwords.UpdatePasswordWithHistory(ctx, u.ID, "Fourth#Novel55"))

	after := env.getUser(t, u.ID)
	require.Equal(t, []string{
		before.PasswordHistory[1],
		before.PasswordHistory[2],
		before.PasswordHash,
	}, after.PasswordHistory)
	require.True(t, env.passwords.CheckReuse(ctx, u.ID, p1), "evicted entry no longer blocks")
	require.Equal(t, before.Version+1, after.Version)
}

func TestPasswordHistory_ConcurrentUpdatesKeepEveryEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	env.passwords.HistoryDepth = 10
	u := env.register(t, testEmail)

	passwords := []string{"Alpha#Pass11", "Bravo#Pass22", "Charl#Pass33", "Delta#Pass44"}
	var wg sync.WaitGroup
	for _, pw := range passwords {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.passwords.UpdatePasswordWithHistory(ctx, u.ID, pw))
		}()
	}
	wg.Wait()

	after := env.getUser(t, u.ID)
	require.Len(t, after.PasswordHistory, len(passwords))
	require.Equal(t, int64(len(passwords)+1), after.Version)
	for _, pw := range passwords {
		require.False(t, env.passwords.CheckReuse(ctx, u.ID, pw))
	}
}

func TestCheckReuse_FailsOpen(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	require.True(t, env.passwords.CheckReuse(context.Background(), "01HNOSUCHUSER", testPassword))
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, testEmail)
	tokens, err := env.tokens.CreateSession(ctx, u.ID, testIP, testUA)
	require.NoError(t, err)

	require.ErrorIs(t, env.passwords.ChangePassword(ctx, u.ID, "Wrong#Pass00", "Fresh#Pass66"), ErrInvalidCredentials)
	require.ErrorIs(t, env.passwords.ChangePassword(ctx, u.ID, testPassword, "short"), ErrWeakPassword)
	require.ErrorIs(t, env.passwords.ChangePassword(ctx, u.ID, testPassword, testPassword), ErrPasswordReused)

	require.NoError(t, env.passwords.ChangePassword(ctx, u.ID, testPassword, "Fresh#Pass66"))

	_, err = env.tokens.RefreshAccessToken(ctx, tokens.RefreshToken, testIP, testUA)
	require.ErrorIs(t, err, ErrInvalidSession, "changing the password ends every session")

	_, err = env.login.Login(ctx, testEmail, "Fresh#Pass66", testIP, testUA)
	require.NoError(t, err)
}
