package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	return s, path
}

func testUser(username, email, code string) *types.User {
	now := time.Now()
	return &types.User{
		Username:     username,
		Email:        email,
		ReferralCode: code,
		CreatedAt:    now,
		LastActive:   now,
	}
}

func TestInsertAndFind(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertUser(ctx, testUser("alice", "alice@example.com", "AAAAAA")))

	byName, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", byName.Email)

	byEmail, err := s.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "alice", byEmail.Username)

	byCode, err := s.FindUserByReferralCode(ctx, "AAAAAA")
	require.NoError(t, err)
	require.Equal(t, "alice", byCode.Username)

	_, err = s.FindUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, storage.ErrUserNotExist)
}

func TestInsertDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertUser(ctx, testUser("alice", "alice@example.com", "AAAAAA")))
	err := s.InsertUser(ctx, testUser("alice", "other@example.com", "BBBBBB"))
	require.ErrorIs(t, err, storage.ErrUserAlreadyExist)
	err = s.InsertUser(ctx, testUser("bob", "alice@example.com", "BBBBBB"))
	require.ErrorIs(t, err, storage.ErrUserAlreadyExist)
}

func TestFindReturnsDetachedCopy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertUser(ctx, testUser("alice", "alice@example.com", "AAAAAA")))

	u, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	u.ReferralCount = 42
	u.CompletedTasks = append(u.CompletedTasks, types.CompletedTask{TaskID: "x", Points: 1})

	fresh, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, fresh.ReferralCount)
	require.Empty(t, fresh.CompletedTasks)
}

func TestUpdateUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertUser(ctx, testUser("alice", "alice@example.com", "AAAAAA")))

	u, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	u.ReferralCount = 3
	require.NoError(t, s.UpdateUser(ctx, u))

	fresh, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 3, fresh.ReferralCount)

	require.ErrorIs(t, s.UpdateUser(ctx, testUser("ghost", "", "CCCCCC")), storage.ErrUserNotExist)
}

func TestListUsersKeepsRegistrationOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, s.InsertUser(ctx, testUser(name, "", string(rune('A'+i))+"AAAAA")))
	}
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, "first", users[0].Username)
	require.Equal(t, "second", users[1].Username)
	require.Equal(t, "third", users[2].Username)
}

func TestPendingVerificationQueue(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	v := types.PendingVerification{Username: "alice", TaskID: "twitter_follow", Points: 50, Status: "pending"}
	require.NoError(t, s.AppendPendingVerification(ctx, v))

	pending, err := s.ListPendingVerifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.RemovePendingVerification(ctx, "alice", "twitter_follow"))
	require.ErrorIs(t, s.RemovePendingVerification(ctx, "alice", "twitter_follow"), storage.ErrVerificationNotExist)

	pending, err = s.ListPendingVerifications(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	u := testUser("alice", "alice@example.com", "AAAAAA")
	u.CompletedTasks = []types.CompletedTask{{TaskID: "twitter_follow", Points: 50, VerificationMethod: "manual"}}
	require.NoError(t, s.InsertUser(ctx, u))
	require.NoError(t, s.AppendPendingVerification(ctx, types.PendingVerification{Username: "alice", TaskID: "twitter_post", Points: 100, Status: "pending"}))
	require.NoError(t, s.Persist(ctx))

	reloaded, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)

	got, err := reloaded.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "AAAAAA", got.ReferralCode)
	require.Len(t, got.CompletedTasks, 1)

	pending, err := reloaded.ListPendingVerifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "twitter_post", pending[0].TaskID)
}
