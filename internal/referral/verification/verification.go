package verification

import (
	"context"
	"time"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/catalog"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

var ErrAlreadyCompleted = errors.New("task already completed")
var ErrAlreadyPending = errors.New("task already submitted for verification")
var ErrTaskNotExist = errors.New("task not exist")
var ErrNoPendingTask = errors.New("no pending task found")

// ErrVerificationFailed is a negative business outcome, not a fault: the
// automatic check did not confirm the task. The submission is dropped and
// the user may resubmit.
var ErrVerificationFailed = errors.New("verification failed")

const statusPending = "pending"

const (
	MethodManual    = "manual"
	MethodAutomatic = "automatic"
)

// Decision is a strategy's verdict on a valid submission.
type Decision int

const (
	// DecisionPending parks the submission for later admin review.
	DecisionPending Decision = iota
	// DecisionCompleted credits the task immediately.
	DecisionCompleted
)

// Strategy decides what happens to a submission that has already passed
// the duplicate and catalog checks.
type Strategy interface {
	Evaluate(ctx context.Context, user *types.User, task types.Task) (Decision, error)
}

type Outcome struct {
	Completed     bool
	PointsAwarded int
	Message       string
}

// Engine owns the per-task state machine: unsubmitted -> pending ->
// completed/unsubmitted, with a direct unsubmitted -> completed path for
// synchronous strategies. Completed is terminal per (user, task id).
type Engine struct {
	storage  storage.Storage
	catalog  *catalog.Catalog
	strategy Strategy
	logger   *zap.Logger
}

func NewEngine(s storage.Storage, c *catalog.Catalog, strat Strategy, logger *zap.Logger) *Engine {
	return &Engine{storage: s, catalog: c, strategy: strat, logger: logger}
}

func hasCompleted(u *types.User, taskID string) bool {
	for _, t := range u.CompletedTasks {
		if t.TaskID == taskID {
			return true
		}
	}
	return false
}

func pendingIndex(u *types.User, taskID string) int {
	for i, t := range u.PendingTasks {
		if t.TaskID == taskID {
			return i
		}
	}
	return -1
}

// Submit runs the gate every submission passes: one completed entry per
// task id ever, one pending entry at a time, and the task id must exist
// in the catalog. What happens next is the strategy's call.
func (e *Engine) Submit(ctx context.Context, username, taskID string) (*Outcome, error) {
	user, err := e.storage.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, "storage.FindUserByUsername failed: ")
	}
	if hasCompleted(user, taskID) {
		return nil, ErrAlreadyCompleted
	}
	if pendingIndex(user, taskID) >= 0 {
		return nil, ErrAlreadyPending
	}
	task, ok := e.catalog.Get(taskID)
	if !ok {
		return nil, ErrTaskNotExist
	}

	decision, err := e.strategy.Evaluate(ctx, user, task)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastActive = now
	switch decision {
	case DecisionCompleted:
		user.CompletedTasks = append(user.CompletedTasks, types.CompletedTask{
			TaskID:             task.ID,
			Points:             task.Points,
			CompletedAt:        now,
			VerificationMethod: MethodAutomatic,
		})
		if err := e.storage.UpdateUser(ctx, user); err != nil {
			return nil, errors.Wrap(err, "storage.UpdateUser failed: ")
		}
		e.checkpoint(ctx)
		e.logger.Info("task verified automatically",
			zap.String("username", username), zap.String("task_id", taskID), zap.Int("points", task.Points))
		return &Outcome{Completed: true, PointsAwarded: task.Points, Message: "Task verified! Points awarded."}, nil
	default:
		user.PendingTasks = append(user.PendingTasks, types.PendingTask{
			TaskID:      task.ID,
			Points:      task.Points,
			SubmittedAt: now,
			Status:      statusPending,
		})
		queued := types.PendingVerification{
			Username:    user.Username,
			Email:       user.Email,
			TaskID:      task.ID,
			TaskTitle:   task.Title,
			Points:      task.Points,
			SubmittedAt: now,
			Status:      statusPending,
		}
		if err := e.storage.AppendPendingVerification(ctx, queued); err != nil {
			return nil, errors.Wrap(err, "storage.AppendPendingVerification failed: ")
		}
		if err := e.storage.UpdateUser(ctx, user); err != nil {
			// Keep list and queue in step even on the failure path.
			if rmErr := e.storage.RemovePendingVerification(ctx, user.Username, task.ID); rmErr != nil {
				e.logger.Error("queue rollback failed", zap.Error(rmErr))
			}
			return nil, errors.Wrap(err, "storage.UpdateUser failed: ")
		}
		e.checkpoint(ctx)
		e.logger.Info("task submitted for manual verification",
			zap.String("username", username), zap.String("task_id", taskID))
		return &Outcome{Message: "Task submitted for manual verification. Admin will review and award points."}, nil
	}
}

// Approve moves a pending submission to completed. The entry must be
// present both on the user and in the global queue; a miss in either
// place returns ErrNoPendingTask with nothing mutated.
func (e *Engine) Approve(ctx context.Context, username, taskID, adminID string) (*Outcome, error) {
	user, err := e.storage.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, "storage.FindUserByUsername failed: ")
	}
	idx := pendingIndex(user, taskID)
	if idx < 0 {
		return nil, ErrNoPendingTask
	}
	if err := e.storage.RemovePendingVerification(ctx, username, taskID); err != nil {
		if errors.Is(err, storage.ErrVerificationNotExist) {
			return nil, ErrNoPendingTask
		}
		return nil, errors.Wrap(err, "storage.RemovePendingVerification failed: ")
	}

	pending := user.PendingTasks[idx]
	now := time.Now()
	if adminID == "" {
		adminID = "admin"
	}
	user.CompletedTasks = append(user.CompletedTasks, types.CompletedTask{
		TaskID:             pending.TaskID,
		Points:             pending.Points,
		CompletedAt:        now,
		VerificationMethod: MethodManual,
		VerifiedBy:         adminID,
	})
	user.PendingTasks = append(user.PendingTasks[:idx], user.PendingTasks[idx+1:]...)
	user.LastActive = now
	if err := e.storage.UpdateUser(ctx, user); err != nil {
		// The queue row is already gone; put it back so the pending entry
		// stays intact in both places and the approval can be retried.
		e.restoreQueueEntry(ctx, user, pending)
		return nil, errors.Wrap(err, "storage.UpdateUser failed: ")
	}
	e.checkpoint(ctx)
	e.logger.Info("task approved",
		zap.String("username", username), zap.String("task_id", taskID),
		zap.String("admin", adminID), zap.Int("points", pending.Points))
	return &Outcome{Completed: true, PointsAwarded: pending.Points}, nil
}

// Reject drops a pending submission from both locations. The task id
// returns to the unsubmitted state and may be submitted again.
func (e *Engine) Reject(ctx context.Context, username, taskID, reason string) error {
	user, err := e.storage.FindUserByUsername(ctx, username)
	if err != nil {
		return errors.Wrap(err, "storage.FindUserByUsername failed: ")
	}
	idx := pendingIndex(user, taskID)
	if idx < 0 {
		return ErrNoPendingTask
	}
	if err := e.storage.RemovePendingVerification(ctx, username, taskID); err != nil {
		if errors.Is(err, storage.ErrVerificationNotExist) {
			return ErrNoPendingTask
		}
		return errors.Wrap(err, "storage.RemovePendingVerification failed: ")
	}
	pending := user.PendingTasks[idx]
	user.PendingTasks = append(user.PendingTasks[:idx], user.PendingTasks[idx+1:]...)
	if err := e.storage.UpdateUser(ctx, user); err != nil {
		e.restoreQueueEntry(ctx, user, pending)
		return errors.Wrap(err, "storage.UpdateUser failed: ")
	}
	e.checkpoint(ctx)
	e.logger.Info("task rejected",
		zap.String("username", username), zap.String("task_id", taskID), zap.String("reason", reason))
	return nil
}

// restoreQueueEntry re-appends a queue row removed by an approve or
// reject whose user update then failed, keeping the user's pending list
// and the global queue in step.
func (e *Engine) restoreQueueEntry(ctx context.Context, user *types.User, pending types.PendingTask) {
	title := ""
	if task, ok := e.catalog.Get(pending.TaskID); ok {
		title = task.Title
	}
	entry := types.PendingVerification{
		Username:    user.Username,
		Email:       user.Email,
		TaskID:      pending.TaskID,
		TaskTitle:   title,
		Points:      pending.Points,
		SubmittedAt: pending.SubmittedAt,
		Status:      statusPending,
	}
	if err := e.storage.AppendPendingVerification(ctx, entry); err != nil {
		e.logger.Error("queue restore failed", zap.Error(err))
	}
}

// checkpoint requests a durability flush after a mutation. The snapshot
// is fire-and-forget relative to the caller's response: a transient write
// failure is logged, the in-memory state stays authoritative.
func (e *Engine) checkpoint(ctx context.Context) {
	if err := e.storage.Persist(ctx); err != nil {
		e.logger.Error("storage.Persist failed", zap.Error(err))
	}
}
