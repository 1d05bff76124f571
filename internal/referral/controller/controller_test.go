package controller

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/catalog"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/config"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/graph"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage/memory"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/verification"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testAdminPassword = "hunter2"

func newTestController(t *testing.T) *Controller {
	t.Helper()
	store, err := memory.NewStore(filepath.Join(t.TempDir(), "data.json"), zap.NewNop())
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{JWTSecret: "test-secret", AdminPasswordHash: string(hash)}
	cat := catalog.Default()
	log := zap.NewNop()
	eng := verification.NewEngine(store, cat, verification.Manual{}, log)
	return NewController(cfg, store, cat, eng, graph.New(store, log), log, nil)
}

func register(t *testing.T, c *Controller, username, email, referredBy string) *types.UserStatus {
	t.Helper()
	u, err := c.Register(context.Background(), &types.RegisterRequest{Username: username, Email: email, ReferredBy: referredBy})
	require.NoError(t, err)
	return u
}

func TestRegisterValidation(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()

	_, err := c.Register(ctx, &types.RegisterRequest{Username: "alice"})
	require.ErrorIs(t, err, ErrMissingField)

	_, err = c.Register(ctx, &types.RegisterRequest{Username: "alice", Email: "not-an-email"})
	require.ErrorIs(t, err, ErrInvalidEmail)

	register(t, c, "alice", "alice@example.com", "")
	_, err = c.Register(ctx, &types.RegisterRequest{Username: "alice", Email: "new@example.com"})
	require.ErrorIs(t, err, storage.ErrUserAlreadyExist)
	_, err = c.Register(ctx, &types.RegisterRequest{Username: "alice2", Email: "alice@example.com"})
	require.ErrorIs(t, err, storage.ErrUserAlreadyExist)
}

func TestRegisterGeneratesReferralCode(t *testing.T) {
	c := newTestController(t)
	alice := register(t, c, "alice", "alice@example.com", "")
	require.Len(t, alice.ReferralCode, 6)
	require.Zero(t, alice.TotalPoints)
}

func TestRegisterWithUnknownReferralCodeStillSucceeds(t *testing.T) {
	c := newTestController(t)
	bob := register(t, c, "bob", "bob@example.com", "STALE0")
	require.Equal(t, "STALE0", bob.ReferredBy)

	board, err := c.Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	for _, entry := range board {
		require.Zero(t, entry.ReferralCount)
	}
}

func TestLogin(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()
	register(t, c, "alice", "alice@example.com", "")

	_, err := c.Login(ctx, &types.LoginRequest{})
	require.ErrorIs(t, err, ErrMissingIdentifier)

	_, err = c.Login(ctx, &types.LoginRequest{Username: "ghost"})
	require.ErrorIs(t, err, storage.ErrUserNotExist)

	byName, err := c.Login(ctx, &types.LoginRequest{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, "alice", byName.Username)

	byEmail, err := c.Login(ctx, &types.LoginRequest{Email: "alice@example.com"})
	require.NoError(t, err)
	require.Equal(t, "alice", byEmail.Username)
	require.False(t, byEmail.LastActive.Before(byName.LastActive))
}

// The full referral/task walkthrough: alice refers bob, completes a task
// through the manual queue, and cannot complete it twice.
func TestReferralAndTaskScenario(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()

	alice := register(t, c, "alice", "alice@example.com", "")
	register(t, c, "bob", "bob@example.com", alice.ReferralCode)

	status, err := c.Login(ctx, &types.LoginRequest{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, 1, status.ReferralCount)
	require.Equal(t, 150, status.TotalPoints)
	require.Len(t, status.Referrals, 1)
	require.Equal(t, "bob", status.Referrals[0].Username)

	status, _, err = c.SubmitTask(ctx, "alice", "twitter_follow")
	require.NoError(t, err)
	require.Equal(t, 150, status.TotalPoints) // pending earns nothing yet

	status, outcome, err := c.ApproveTask(ctx, "alice", "twitter_follow", "admin")
	require.NoError(t, err)
	require.Equal(t, 50, outcome.PointsAwarded)
	require.Equal(t, 200, status.TotalPoints)

	_, _, err = c.SubmitTask(ctx, "alice", "twitter_follow")
	require.ErrorIs(t, err, verification.ErrAlreadyCompleted)

	status, err = c.Login(ctx, &types.LoginRequest{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, 200, status.TotalPoints)
}

func TestLeaderboardOrderingAndLimit(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()

	u300 := register(t, c, "u300", "u300@example.com", "")
	register(t, c, "u100", "u100@example.com", "")
	u200 := register(t, c, "u200", "u200@example.com", "")

	// u300: two referrals = 300 points.
	register(t, c, "ref1", "ref1@example.com", u300.ReferralCode)
	register(t, c, "ref2", "ref2@example.com", u300.ReferralCode)
	// u100: one approved twitter_post = 100 points.
	_, _, err := c.SubmitTask(ctx, "u100", "twitter_post")
	require.NoError(t, err)
	_, _, err = c.ApproveTask(ctx, "u100", "twitter_post", "admin")
	require.NoError(t, err)
	// u200: one referral + approved twitter_follow = 200 points.
	register(t, c, "ref3", "ref3@example.com", u200.ReferralCode)
	_, _, err = c.SubmitTask(ctx, "u200", "twitter_follow")
	require.NoError(t, err)
	_, _, err = c.ApproveTask(ctx, "u200", "twitter_follow", "admin")
	require.NoError(t, err)

	board, err := c.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, "u300", board[0].Username)
	require.Equal(t, 300, board[0].Points)
	require.Equal(t, 1, board[0].Rank)
	require.Equal(t, "u200", board[1].Username)
	require.Equal(t, 200, board[1].Points)
	require.Equal(t, 2, board[1].Rank)
}

func TestLeaderboardTiesKeepRegistrationOrder(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()
	register(t, c, "early", "early@example.com", "")
	register(t, c, "late", "late@example.com", "")

	board, err := c.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, "early", board[0].Username)
	require.Equal(t, "late", board[1].Username)
}

func TestAdminSnapshot(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()

	alice := register(t, c, "alice", "alice@example.com", "")
	register(t, c, "bob", "bob@example.com", alice.ReferralCode)
	_, _, err := c.SubmitTask(ctx, "bob", "telegram_join")
	require.NoError(t, err)
	_, _, err = c.SubmitTask(ctx, "alice", "twitter_follow")
	require.NoError(t, err)
	_, _, err = c.ApproveTask(ctx, "alice", "twitter_follow", "admin")
	require.NoError(t, err)

	snap, err := c.AdminSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, snap.TotalUsers)
	require.Equal(t, 200, snap.TotalPoints)
	require.Equal(t, 1, snap.TotalReferrals)
	require.Equal(t, 1, snap.TotalCompletedTasks)
	require.Equal(t, 1, snap.PendingVerifications)
	require.Len(t, snap.PendingQueue, 1)
	require.Equal(t, "bob", snap.PendingQueue[0].Username)
	// Breakdown is sorted by total points.
	require.Equal(t, "alice", snap.Users[0].Username)
	require.Equal(t, 200, snap.Users[0].TotalPoints)
	require.Equal(t, 50, snap.Users[0].TaskPoints)
	require.Equal(t, 150, snap.Users[0].ReferralPoints)
}

func TestUserLocksEvictOnRelease(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()
	register(t, c, "alice", "alice@example.com", "")

	// Contended access must serialize, then leave no entry behind.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Login(ctx, &types.LoginRequest{Username: "alice"})
		}()
	}
	wg.Wait()

	c.locks.mu.Lock()
	remaining := len(c.locks.locks)
	c.locks.mu.Unlock()
	require.Zero(t, remaining)
}

func TestAuthorizeAdmin(t *testing.T) {
	c := newTestController(t)
	_, err := c.AuthorizeAdmin("wrong")
	require.ErrorIs(t, err, ErrWrongAdminPassword)

	token, err := c.AuthorizeAdmin(testAdminPassword)
	require.NoError(t, err)
	require.NotEmpty(t, token)
}
