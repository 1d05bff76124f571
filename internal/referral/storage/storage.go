package storage

import (
	"context"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/go-faster/errors"
)

var ErrUserAlreadyExist = errors.New("user already exist")
var ErrUserNotExist = errors.New("user not exist")
var ErrVerificationNotExist = errors.New("pending verification not exist")

// ErrUnavailable marks transient persistence failures. Callers surface it
// without mutating any state they have already read.
var ErrUnavailable = errors.New("storage unavailable")

// Storage is the persistence contract the core depends on. Two
// implementations exist: an in-process table with a JSON file snapshot
// and a postgres-backed document store. Implementations return detached
// copies; callers mutate and hand records back through UpdateUser.
type Storage interface {
	FindUserByUsername(ctx context.Context, username string) (*types.User, error)
	FindUserByEmail(ctx context.Context, email string) (*types.User, error)
	FindUserByReferralCode(ctx context.Context, code string) (*types.User, error)
	InsertUser(ctx context.Context, user *types.User) error
	UpdateUser(ctx context.Context, user *types.User) error
	// ListUsers returns users in registration order.
	ListUsers(ctx context.Context) ([]*types.User, error)

	AppendPendingVerification(ctx context.Context, v types.PendingVerification) error
	RemovePendingVerification(ctx context.Context, username, taskID string) error
	ListPendingVerifications(ctx context.Context) ([]types.PendingVerification, error)

	// Persist is a durability checkpoint, sequenced after the mutation it
	// reflects. A no-op for engines that are durable per operation.
	Persist(ctx context.Context) error
}
