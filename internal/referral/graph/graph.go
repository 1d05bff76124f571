package graph

import (
	"context"
	"strings"
	"time"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const codeLength = 6

// NewCode derives a short shareable referral code from a fresh uuid.
// Codes are permanent: nothing ever invalidates one, and a single code
// serves unlimited referees.
func NewCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return raw[:codeLength]
}

// Graph maintains the one-level referrer->referee edges. Edges only ever
// point from a newly registered user to an existing one, so cycles are
// impossible by construction.
type Graph struct {
	storage storage.Storage
	logger  *zap.Logger
}

func New(s storage.Storage, logger *zap.Logger) *Graph {
	return &Graph{storage: s, logger: logger}
}

// Attribute credits the owner of referrerCode with the signup of
// newUser. It is called exactly once, immediately after the new user is
// persisted. An unknown or stale code is a silent no-op: the referee's
// registration already succeeded and must not be failed retroactively.
// Returns whether an edge was recorded.
func (g *Graph) Attribute(ctx context.Context, referrerCode string, newUser *types.User) (bool, error) {
	if referrerCode == "" {
		return false, nil
	}
	// The new user's code is generated before this call, so guard against
	// a request that echoes it back.
	if referrerCode == newUser.ReferralCode {
		g.logger.Warn("self-referral rejected", zap.String("username", newUser.Username))
		return false, nil
	}
	referrer, err := g.storage.FindUserByReferralCode(ctx, referrerCode)
	if errors.Is(err, storage.ErrUserNotExist) {
		g.logger.Info("unknown referral code ignored",
			zap.String("code", referrerCode), zap.String("username", newUser.Username))
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "storage.FindUserByReferralCode failed: ")
	}
	if referrer.Username == newUser.Username {
		return false, nil
	}
	referrer.ReferralCount++
	referrer.Referrals = append(referrer.Referrals, types.ReferralEdge{
		Username: newUser.Username,
		Email:    newUser.Email,
		JoinedAt: time.Now(),
	})
	if err := g.storage.UpdateUser(ctx, referrer); err != nil {
		return false, errors.Wrap(err, "storage.UpdateUser failed: ")
	}
	g.logger.Info("referral attributed",
		zap.String("referrer", referrer.Username), zap.String("referee", newUser.Username))
	return true, nil
}
