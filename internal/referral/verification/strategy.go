package verification

import (
	"context"
	"math/rand"
	"time"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"go.uber.org/zap"
)

// Manual parks every submission for admin review.
type Manual struct{}

func (Manual) Evaluate(context.Context, *types.User, types.Task) (Decision, error) {
	return DecisionPending, nil
}

// Predicate answers whether a user actually performed a task. In
// production this would call out to the social network; tests and the
// simulated deployment inject their own.
type Predicate func(ctx context.Context, username, taskID string) bool

// Automatic evaluates the predicate under a bounded deadline and
// completes or fails the submission in the same request. An expired
// check counts as a failure, never as an open-ended wait.
type Automatic struct {
	predicate Predicate
	timeout   time.Duration
	logger    *zap.Logger
}

func NewAutomatic(p Predicate, timeout time.Duration, logger *zap.Logger) *Automatic {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Automatic{predicate: p, timeout: timeout, logger: logger}
}

func (a *Automatic) Evaluate(ctx context.Context, user *types.User, task types.Task) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	result := make(chan bool, 1)
	go func() {
		result <- a.predicate(ctx, user.Username, task.ID)
	}()
	select {
	case ok := <-result:
		if !ok {
			return DecisionPending, ErrVerificationFailed
		}
		return DecisionCompleted, nil
	case <-ctx.Done():
		a.logger.Warn("verification check expired",
			zap.String("username", user.Username), zap.String("task_id", task.ID))
		return DecisionPending, ErrVerificationFailed
	}
}

// SimulatedPredicate mimics an external check: a fixed latency followed
// by a per-task success probability. Unknown task ids succeed half the
// time.
func SimulatedPredicate(successRates map[string]float64, latency time.Duration) Predicate {
	return func(ctx context.Context, _ string, taskID string) bool {
		if latency > 0 {
			timer := time.NewTimer(latency)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return false
			}
		}
		rate, ok := successRates[taskID]
		if !ok {
			rate = 0.5
		}
		return rand.Float64() < rate
	}
}
