package postgres

import (
	"context"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB stores users as documents: the task and referral lists live in jsonb
// columns, so the record round-trips whole like the snapshot variant.
type DB struct {
	Conn   *pgxpool.Pool
	logger *zap.Logger
}

var _ storage.Storage = (*DB)(nil)

func NewDB(ctx context.Context, url string, logger *zap.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.New failed: ")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "pool.Ping failed: %v", err)
	}
	return &DB{Conn: pool, logger: logger}, nil
}

const userColumns = "username, email, telegram, referral_code, referred_by, referral_count, completed_tasks, pending_tasks, referrals, created_at, last_active"

func scanUser(row pgx.Row) (*types.User, error) {
	user := &types.User{}
	err := row.Scan(&user.Username, &user.Email, &user.Telegram, &user.ReferralCode, &user.ReferredBy,
		&user.ReferralCount, &user.CompletedTasks, &user.PendingTasks, &user.Referrals, &user.CreatedAt, &user.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrUserNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "row.Scan failed: %v", err)
	}
	return user, nil
}

func (d *DB) FindUserByUsername(ctx context.Context, username string) (*types.User, error) {
	return scanUser(d.Conn.QueryRow(ctx, "select "+userColumns+" from users where username = $1", username))
}

func (d *DB) FindUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return scanUser(d.Conn.QueryRow(ctx, "select "+userColumns+" from users where email = $1", email))
}

func (d *DB) FindUserByReferralCode(ctx context.Context, code string) (*types.User, error) {
	return scanUser(d.Conn.QueryRow(ctx, "select "+userColumns+" from users where referral_code = $1", code))
}

func (d *DB) InsertUser(ctx context.Context, user *types.User) error {
	row := d.Conn.QueryRow(ctx,
		"insert into users ("+userColumns+") values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) on conflict do nothing returning username",
		user.Username, user.Email, user.Telegram, user.ReferralCode, user.ReferredBy, user.ReferralCount,
		user.CompletedTasks, user.PendingTasks, user.Referrals, user.CreatedAt, user.LastActive)
	var username string
	err := row.Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrUserAlreadyExist
	}
	if err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "row.Scan failed: %v", err)
	}
	return nil
}

func (d *DB) UpdateUser(ctx context.Context, user *types.User) error {
	tag, err := d.Conn.Exec(ctx,
		"update users set email = $2, telegram = $3, referral_count = $4, completed_tasks = $5, pending_tasks = $6, referrals = $7, last_active = $8 where username = $1",
		user.Username, user.Email, user.Telegram, user.ReferralCount,
		user.CompletedTasks, user.PendingTasks, user.Referrals, user.LastActive)
	if err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "conn.Exec failed: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotExist
	}
	return nil
}

func (d *DB) ListUsers(ctx context.Context) ([]*types.User, error) {
	rows, err := d.Conn.Query(ctx, "select "+userColumns+" from users order by id")
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "conn.Query failed: %v", err)
	}
	defer rows.Close()
	var users []*types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "rows.Err: %v", err)
	}
	return users, nil
}

func (d *DB) AppendPendingVerification(ctx context.Context, v types.PendingVerification) error {
	_, err := d.Conn.Exec(ctx,
		"insert into pending_verifications (username, email, task_id, task_title, points, submitted_at, status) values ($1, $2, $3, $4, $5, $6, $7)",
		v.Username, v.Email, v.TaskID, v.TaskTitle, v.Points, v.SubmittedAt, v.Status)
	if err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "conn.Exec failed: %v", err)
	}
	return nil
}

func (d *DB) RemovePendingVerification(ctx context.Context, username, taskID string) error {
	tag, err := d.Conn.Exec(ctx, "delete from pending_verifications where username = $1 and task_id = $2", username, taskID)
	if err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "conn.Exec failed: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrVerificationNotExist
	}
	return nil
}

func (d *DB) ListPendingVerifications(ctx context.Context) ([]types.PendingVerification, error) {
	rows, err := d.Conn.Query(ctx, "select username, email, task_id, task_title, points, submitted_at, status from pending_verifications order by id")
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "conn.Query failed: %v", err)
	}
	defer rows.Close()
	var result []types.PendingVerification
	for rows.Next() {
		var v types.PendingVerification
		if err := rows.Scan(&v.Username, &v.Email, &v.TaskID, &v.TaskTitle, &v.Points, &v.SubmittedAt, &v.Status); err != nil {
			return nil, errors.Wrapf(storage.ErrUnavailable, "rows.Scan failed: %v", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "rows.Err: %v", err)
	}
	return result, nil
}

// Persist is a no-op: every write above is durable on commit.
func (d *DB) Persist(context.Context) error { return nil }
