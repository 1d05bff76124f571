package controller

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/catalog"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/config"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/graph"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/ledger"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/verification"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrMissingField = errors.New("username and email are required")
var ErrInvalidEmail = errors.New("invalid email")
var ErrMissingIdentifier = errors.New("username or email is required")
var ErrWrongAdminPassword = errors.New("wrong admin password")

const defaultLeaderboardLimit = 20
const codeAttempts = 5

// userLocks serializes mutations per username so concurrent submissions
// for the same user cannot race past the already-completed check.
// Operations on distinct users stay parallel. Entries are refcounted and
// evicted once the last holder releases, so the map tracks in-flight
// users rather than every username ever seen.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func (l *userLocks) lock(username string) func() {
	l.mu.Lock()
	m, ok := l.locks[username]
	if !ok {
		m = &userLock{}
		l.locks[username] = m
	}
	m.refs++
	l.mu.Unlock()
	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, username)
		}
		l.mu.Unlock()
	}
}

type Controller struct {
	storage       storage.Storage
	catalog       *catalog.Catalog
	engine        *verification.Engine
	graph         *graph.Graph
	locks         userLocks
	jwtSecret     []byte
	adminPassHash []byte
	logger        *zap.Logger
	startedAt     time.Time
	storageClose  func() error
}

func NewController(cfg *config.Config, s storage.Storage, c *catalog.Catalog, e *verification.Engine, g *graph.Graph, logger *zap.Logger, storageClose func() error) *Controller {
	return &Controller{
		storage:       s,
		catalog:       c,
		engine:        e,
		graph:         g,
		locks:         userLocks{locks: map[string]*userLock{}},
		jwtSecret:     []byte(cfg.JWTSecret),
		adminPassHash: []byte(cfg.AdminPasswordHash),
		logger:        logger,
		startedAt:     time.Now(),
		storageClose:  storageClose,
	}
}

func (c *Controller) status(u *types.User) *types.UserStatus {
	return &types.UserStatus{User: u, TotalPoints: ledger.TotalPoints(u)}
}

func isValidEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

// Register creates a user, then attributes the referral if the request
// carried a code. A bad or stale code never fails the registration.
func (c *Controller) Register(ctx context.Context, req *types.RegisterRequest) (*types.UserStatus, error) {
	if req.Username == "" || req.Email == "" {
		return nil, ErrMissingField
	}
	if !isValidEmail(req.Email) {
		return nil, ErrInvalidEmail
	}
	if _, err := c.storage.FindUserByUsername(ctx, req.Username); err == nil {
		return nil, storage.ErrUserAlreadyExist
	} else if !errors.Is(err, storage.ErrUserNotExist) {
		return nil, errors.Wrap(err, "storage.FindUserByUsername failed: ")
	}
	if _, err := c.storage.FindUserByEmail(ctx, req.Email); err == nil {
		return nil, storage.ErrUserAlreadyExist
	} else if !errors.Is(err, storage.ErrUserNotExist) {
		return nil, errors.Wrap(err, "storage.FindUserByEmail failed: ")
	}

	code, err := c.newUniqueCode(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	user := &types.User{
		Username:       req.Username,
		Email:          req.Email,
		Telegram:       req.Telegram,
		ReferralCode:   code,
		ReferredBy:     req.ReferredBy,
		CompletedTasks: []types.CompletedTask{},
		PendingTasks:   []types.PendingTask{},
		Referrals:      []types.ReferralEdge{},
		CreatedAt:      now,
		LastActive:     now,
	}
	if err := c.storage.InsertUser(ctx, user); err != nil {
		return nil, errors.Wrap(err, "storage.InsertUser failed: ")
	}

	if req.ReferredBy != "" {
		c.attribute(ctx, req.ReferredBy, user)
	}
	c.checkpoint(ctx)
	c.logger.Info("user registered", zap.String("username", user.Username), zap.String("referral_code", code))
	return c.status(user), nil
}

// attribute serializes on the referrer and records the edge. Attribution
// failures are logged, never surfaced: the referee is already persisted.
func (c *Controller) attribute(ctx context.Context, referrerCode string, user *types.User) {
	referrer, err := c.storage.FindUserByReferralCode(ctx, referrerCode)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotExist) {
			c.logger.Error("storage.FindUserByReferralCode failed", zap.Error(err))
		}
		// Unknown code: the graph logs the no-op below.
	}
	var unlock func()
	if referrer != nil {
		unlock = c.locks.lock(referrer.Username)
	}
	if _, err := c.graph.Attribute(ctx, referrerCode, user); err != nil {
		c.logger.Error("graph.Attribute failed", zap.Error(err))
	}
	if unlock != nil {
		unlock()
	}
}

func (c *Controller) newUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := graph.NewCode()
		_, err := c.storage.FindUserByReferralCode(ctx, code)
		if errors.Is(err, storage.ErrUserNotExist) {
			return code, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "storage.FindUserByReferralCode failed: ")
		}
	}
	return "", errors.New("referral code space exhausted")
}

// Login resolves the user by username or email and touches LastActive.
func (c *Controller) Login(ctx context.Context, req *types.LoginRequest) (*types.UserStatus, error) {
	if req.Username == "" && req.Email == "" {
		return nil, ErrMissingIdentifier
	}
	var user *types.User
	var err error
	if req.Username != "" {
		user, err = c.storage.FindUserByUsername(ctx, req.Username)
	} else {
		user, err = c.storage.FindUserByEmail(ctx, req.Email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage user lookup failed: ")
	}

	unlock := c.locks.lock(user.Username)
	defer unlock()
	user, err = c.storage.FindUserByUsername(ctx, user.Username)
	if err != nil {
		return nil, errors.Wrap(err, "storage.FindUserByUsername failed: ")
	}
	user.LastActive = time.Now()
	if err := c.storage.UpdateUser(ctx, user); err != nil {
		return nil, errors.Wrap(err, "storage.UpdateUser failed: ")
	}
	c.checkpoint(ctx)
	c.logger.Info("user logged in", zap.String("username", user.Username))
	return c.status(user), nil
}

func (c *Controller) SubmitTask(ctx context.Context, username, taskID string) (*types.UserStatus, *verification.Outcome, error) {
	unlock := c.locks.lock(username)
	defer unlock()
	outcome, err := c.engine.Submit(ctx, username, taskID)
	if err != nil {
		return nil, nil, err
	}
	user, err := c.storage.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, errors.Wrap(err, "storage.FindUserByUsername failed: ")
	}
	return c.status(user), outcome, nil
}

func (c *Controller) ApproveTask(ctx context.Context, username, taskID, adminID string) (*types.UserStatus, *verification.Outcome, error) {
	unlock := c.locks.lock(username)
	defer unlock()
	outcome, err := c.engine.Approve(ctx, username, taskID, adminID)
	if err != nil {
		return nil, nil, err
	}
	user, err := c.storage.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, errors.Wrap(err, "storage.FindUserByUsername failed: ")
	}
	return c.status(user), outcome, nil
}

func (c *Controller) RejectTask(ctx context.Context, username, taskID, reason string) error {
	unlock := c.locks.lock(username)
	defer unlock()
	return c.engine.Reject(ctx, username, taskID, reason)
}

// Leaderboard ranks users by derived total points, descending. Ties keep
// registration order, which the stable sort preserves.
func (c *Controller) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	users, err := c.storage.ListUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "storage.ListUsers failed: ")
	}
	entries := make([]types.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, types.LeaderboardEntry{
			Username:       u.Username,
			Email:          u.Email,
			Points:         ledger.TotalPoints(u),
			ReferralCount:  u.ReferralCount,
			CompletedTasks: len(u.CompletedTasks),
			JoinedAt:       u.CreatedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Points > entries[j].Points })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (c *Controller) Tasks() []types.Task {
	return c.catalog.List()
}

func (c *Controller) PendingVerifications(ctx context.Context) ([]types.PendingVerification, error) {
	return c.storage.ListPendingVerifications(ctx)
}

// AdminSnapshot is the full per-user breakdown plus aggregate totals,
// sorted by total points.
func (c *Controller) AdminSnapshot(ctx context.Context) (*types.AdminSnapshot, error) {
	users, err := c.storage.ListUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "storage.ListUsers failed: ")
	}
	pending, err := c.storage.ListPendingVerifications(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "storage.ListPendingVerifications failed: ")
	}
	snap := &types.AdminSnapshot{
		TotalUsers:           len(users),
		PendingVerifications: len(pending),
		Users:                make([]types.UserBreakdown, 0, len(users)),
		PendingQueue:         pending,
	}
	for _, u := range users {
		total := ledger.TotalPoints(u)
		snap.TotalPoints += total
		snap.TotalReferrals += u.ReferralCount
		snap.TotalCompletedTasks += len(u.CompletedTasks)
		snap.Users = append(snap.Users, types.UserBreakdown{
			Username:       u.Username,
			Email:          u.Email,
			Telegram:       u.Telegram,
			ReferralCode:   u.ReferralCode,
			TotalPoints:    total,
			TaskPoints:     ledger.TaskPoints(u),
			ReferralPoints: ledger.ReferralPoints(u),
			ReferralCount:  u.ReferralCount,
			CompletedTasks: u.CompletedTasks,
			PendingTasks:   u.PendingTasks,
			Referrals:      u.Referrals,
			ReferredBy:     u.ReferredBy,
			CreatedAt:      u.CreatedAt,
			LastActive:     u.LastActive,
		})
	}
	sort.SliceStable(snap.Users, func(i, j int) bool { return snap.Users[i].TotalPoints > snap.Users[j].TotalPoints })
	return snap, nil
}

// AuthorizeAdmin exchanges the admin password for a short-lived token.
func (c *Controller) AuthorizeAdmin(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(c.adminPassHash, []byte(password)); err != nil {
		return "", ErrWrongAdminPassword
	}
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)
	claims["role"] = "admin"
	claims["exp"] = time.Now().Add(time.Hour * 72).Unix()
	return token.SignedString(c.jwtSecret)
}

// HealthStats feeds the health endpoint.
func (c *Controller) HealthStats(ctx context.Context) (usersCount, pendingCount int, uptime time.Duration, err error) {
	users, err := c.storage.ListUsers(ctx)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "storage.ListUsers failed: ")
	}
	pending, err := c.storage.ListPendingVerifications(ctx)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "storage.ListPendingVerifications failed: ")
	}
	return len(users), len(pending), time.Since(c.startedAt), nil
}

func (c *Controller) checkpoint(ctx context.Context) {
	if err := c.storage.Persist(ctx); err != nil {
		c.logger.Error("storage.Persist failed", zap.Error(err))
	}
}

func (c *Controller) Close() error {
	if c.storageClose == nil {
		return nil
	}
	return c.storageClose()
}
