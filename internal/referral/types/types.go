package types

import "time"

// User is the authoritative record of a participant. It intentionally
// carries no stored point total: totals are always derived from
// CompletedTasks and ReferralCount.
type User struct {
	Username       string          `json:"username"`
	Email          string          `json:"email,omitempty"`
	Telegram       string          `json:"telegram,omitempty"`
	ReferralCode   string          `json:"referral_code"`
	ReferredBy     string          `json:"referred_by,omitempty"`
	ReferralCount  int             `json:"referral_count"`
	CompletedTasks []CompletedTask `json:"completed_tasks"`
	PendingTasks   []PendingTask   `json:"pending_tasks"`
	Referrals      []ReferralEdge  `json:"referrals"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActive     time.Time       `json:"last_active"`
}

// Clone returns a deep copy so storage implementations can hand out
// records without aliasing their internal state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.CompletedTasks = append([]CompletedTask(nil), u.CompletedTasks...)
	clone.PendingTasks = append([]PendingTask(nil), u.PendingTasks...)
	clone.Referrals = append([]ReferralEdge(nil), u.Referrals...)
	return &clone
}

// CompletedTask is an append-only fact: the point value is snapshotted at
// completion time and never re-looked-up from the catalog.
type CompletedTask struct {
	TaskID             string    `json:"task_id"`
	Points             int       `json:"points"`
	CompletedAt        time.Time `json:"completed_at"`
	VerificationMethod string    `json:"verification_method"`
	VerifiedBy         string    `json:"verified_by,omitempty"`
}

type PendingTask struct {
	TaskID      string    `json:"task_id"`
	Points      int       `json:"points"`
	SubmittedAt time.Time `json:"submitted_at"`
	Status      string    `json:"status"`
}

// ReferralEdge is owned by the referrer and records one referee signup.
type ReferralEdge struct {
	Username string    `json:"username"`
	Email    string    `json:"email,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Points int    `json:"points"`
}

// PendingVerification is the global-queue mirror of a user's PendingTask,
// kept for the admin review surface.
type PendingVerification struct {
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	TaskID      string    `json:"task_id"`
	TaskTitle   string    `json:"task_title"`
	Points      int       `json:"points"`
	SubmittedAt time.Time `json:"submitted_at"`
	Status      string    `json:"status"`
}

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Telegram   string `json:"telegram"`
	ReferredBy string `json:"referredBy"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type SubmitTaskRequest struct {
	Username string `json:"username"`
	TaskID   string `json:"taskId"`
}

type AdminTaskRequest struct {
	Username string `json:"username"`
	TaskID   string `json:"taskId"`
	Reason   string `json:"reason"`
}

type AdminLoginRequest struct {
	Password string `json:"password"`
}

// UserStatus is a User plus its derived total, the shape every
// user-facing response carries.
type UserStatus struct {
	*User
	TotalPoints int `json:"total_points"`
}

type LeaderboardEntry struct {
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	Points         int       `json:"points"`
	ReferralCount  int       `json:"referral_count"`
	CompletedTasks int       `json:"completed_tasks"`
	JoinedAt       time.Time `json:"joined_at"`
	Rank           int       `json:"rank"`
}

// UserBreakdown is the admin view of one user with the derived totals
// split into their task and referral components.
type UserBreakdown struct {
	Username       string          `json:"username"`
	Email          string          `json:"email,omitempty"`
	Telegram       string          `json:"telegram,omitempty"`
	ReferralCode   string          `json:"referral_code"`
	TotalPoints    int             `json:"total_points"`
	TaskPoints     int             `json:"task_points"`
	ReferralPoints int             `json:"referral_points"`
	ReferralCount  int             `json:"referral_count"`
	CompletedTasks []CompletedTask `json:"completed_tasks"`
	PendingTasks   []PendingTask   `json:"pending_tasks"`
	Referrals      []ReferralEdge  `json:"referrals"`
	ReferredBy     string          `json:"referred_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActive     time.Time       `json:"last_active"`
}

type AdminSnapshot struct {
	TotalUsers           int                   `json:"total_users"`
	TotalPoints          int                   `json:"total_points"`
	TotalReferrals       int                   `json:"total_referrals"`
	TotalCompletedTasks  int                   `json:"total_completed_tasks"`
	PendingVerifications int                   `json:"pending_verifications"`
	Users                []UserBreakdown       `json:"users"`
	PendingQueue         []PendingVerification `json:"pendingVerifications"`
}
