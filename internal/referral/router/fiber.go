package router

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/config"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/controller"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/router/middleware"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/verification"
	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type appController interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*types.UserStatus, error)
	Login(ctx context.Context, req *types.LoginRequest) (*types.UserStatus, error)
	SubmitTask(ctx context.Context, username, taskID string) (*types.UserStatus, *verification.Outcome, error)
	ApproveTask(ctx context.Context, username, taskID, adminID string) (*types.UserStatus, *verification.Outcome, error)
	RejectTask(ctx context.Context, username, taskID, reason string) error
	Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)
	Tasks() []types.Task
	PendingVerifications(ctx context.Context) ([]types.PendingVerification, error)
	AdminSnapshot(ctx context.Context) (*types.AdminSnapshot, error)
	AuthorizeAdmin(password string) (string, error)
	HealthStats(ctx context.Context) (int, int, time.Duration, error)
	Close() error
}

type HttpRouter struct {
	controller appController
	*fiber.App
	appLogger *zap.Logger
	httpPort  string
}

const internalServerErrorMessage = "Internal server error"
const badRequestMessage = "Malformed request body"

func (r *HttpRouter) Run() error {
	return r.App.Listen(":" + r.httpPort)
}

func (r *HttpRouter) Close() error {
	if err := r.controller.Close(); err != nil {
		r.appLogger.Error("controller.Close failed: ", zap.Error(err))
	}
	return r.App.Shutdown()
}

func fail(ctx *fiber.Ctx, status int, message string) error {
	ctx.Status(status)
	return ctx.JSON(fiber.Map{"success": false, "error": message})
}

// businessError maps the operation sentinels onto statuses and the
// original frontend's error strings. Unmatched errors are genuine
// faults and fall through to 500.
func (r *HttpRouter) businessError(ctx *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, controller.ErrMissingField):
		return fail(ctx, http.StatusBadRequest, "Username and email are required")
	case errors.Is(err, controller.ErrInvalidEmail):
		return fail(ctx, http.StatusBadRequest, "Please enter a valid email")
	case errors.Is(err, controller.ErrMissingIdentifier):
		return fail(ctx, http.StatusBadRequest, "Please enter username or email")
	case errors.Is(err, storage.ErrUserAlreadyExist):
		return fail(ctx, http.StatusConflict, "User already registered")
	case errors.Is(err, storage.ErrUserNotExist):
		return fail(ctx, http.StatusNotFound, "User not found")
	case errors.Is(err, verification.ErrTaskNotExist):
		return fail(ctx, http.StatusNotFound, "Task not found")
	case errors.Is(err, verification.ErrAlreadyCompleted):
		return fail(ctx, http.StatusConflict, "Task already completed")
	case errors.Is(err, verification.ErrAlreadyPending):
		return fail(ctx, http.StatusConflict, "Task already submitted for verification")
	case errors.Is(err, verification.ErrNoPendingTask):
		return fail(ctx, http.StatusNotFound, "No pending task found")
	case errors.Is(err, verification.ErrVerificationFailed):
		return fail(ctx, http.StatusOK, "Verification failed. Please complete the task and try again")
	case errors.Is(err, storage.ErrUnavailable):
		return fail(ctx, http.StatusServiceUnavailable, "Storage temporarily unavailable")
	}
	r.appLogger.Error(op+" failed: ", zap.Error(err))
	return fail(ctx, http.StatusInternalServerError, internalServerErrorMessage)
}

func (r *HttpRouter) Register(ctx *fiber.Ctx) error {
	request := &types.RegisterRequest{}
	if err := ctx.BodyParser(request); err != nil {
		r.appLogger.Error("ctx.BodyParser failed: ", zap.Error(err))
		return fail(ctx, http.StatusBadRequest, badRequestMessage)
	}
	user, err := r.controller.Register(ctx.Context(), request)
	if err != nil {
		return r.businessError(ctx, "controller.Register", err)
	}
	ctx.Status(http.StatusCreated)
	return ctx.JSON(fiber.Map{"success": true, "user": user})
}

func (r *HttpRouter) Login(ctx *fiber.Ctx) error {
	request := &types.LoginRequest{}
	if err := ctx.BodyParser(request); err != nil {
		r.appLogger.Error("ctx.BodyParser failed: ", zap.Error(err))
		return fail(ctx, http.StatusBadRequest, badRequestMessage)
	}
	user, err := r.controller.Login(ctx.Context(), request)
	if err != nil {
		return r.businessError(ctx, "controller.Login", err)
	}
	return ctx.JSON(fiber.Map{"success": true, "user": user})
}

func (r *HttpRouter) SubmitTask(ctx *fiber.Ctx) error {
	request := &types.SubmitTaskRequest{}
	if err := ctx.BodyParser(request); err != nil {
		r.appLogger.Error("ctx.BodyParser failed: ", zap.Error(err))
		return fail(ctx, http.StatusBadRequest, badRequestMessage)
	}
	if request.Username == "" || request.TaskID == "" {
		return fail(ctx, http.StatusBadRequest, "Username and task id are required")
	}
	user, outcome, err := r.controller.SubmitTask(ctx.Context(), request.Username, request.TaskID)
	if err != nil {
		return r.businessError(ctx, "controller.SubmitTask", err)
	}
	return ctx.JSON(fiber.Map{
		"success":   true,
		"user":      user,
		"completed": outcome.Completed,
		"message":   outcome.Message,
	})
}

func (r *HttpRouter) GetTasks(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"success": true, "tasks": r.controller.Tasks()})
}

func (r *HttpRouter) GetLeaderboard(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	leaderboard, err := r.controller.Leaderboard(ctx.Context(), limit)
	if err != nil {
		return r.businessError(ctx, "controller.Leaderboard", err)
	}
	return ctx.JSON(fiber.Map{"success": true, "leaderboard": leaderboard})
}

func (r *HttpRouter) AdminLogin(ctx *fiber.Ctx) error {
	request := &types.AdminLoginRequest{}
	if err := ctx.BodyParser(request); err != nil {
		r.appLogger.Error("ctx.BodyParser failed: ", zap.Error(err))
		return fail(ctx, http.StatusBadRequest, badRequestMessage)
	}
	token, err := r.controller.AuthorizeAdmin(request.Password)
	if errors.Is(err, controller.ErrWrongAdminPassword) {
		return fail(ctx, http.StatusUnauthorized, "Wrong password")
	}
	if err != nil {
		r.appLogger.Error("controller.AuthorizeAdmin failed: ", zap.Error(err))
		return fail(ctx, http.StatusInternalServerError, internalServerErrorMessage)
	}
	return ctx.JSON(fiber.Map{"success": true, "token": token})
}

func (r *HttpRouter) ApproveTask(ctx *fiber.Ctx) error {
	request := &types.AdminTaskRequest{}
	if err := ctx.BodyParser(request); err != nil {
		r.appLogger.Error("ctx.BodyParser failed: ", zap.Error(err))
		return fail(ctx, http.StatusBadRequest, badRequestMessage)
	}
	if request.Username == "" || request.TaskID == "" {
		return fail(ctx, http.StatusBadRequest, "Username and task id are required")
	}
	user, outcome, err := r.controller.ApproveTask(ctx.Context(), request.Username, request.TaskID, adminName(ctx))
	if err != nil {
		return r.businessError(ctx, "controller.ApproveTask", err)
	}
	return ctx.JSON(fiber.Map{
		"success":        true,
		"completed":      true,
		"points_awarded": outcome.PointsAwarded,
		"user":           user,
	})
}

func (r *HttpRouter) RejectTask(ctx *fiber.Ctx) error {
	request := &types.AdminTaskRequest{}
	if err := ctx.BodyParser(request); err != nil {
		r.appLogger.Error("ctx.BodyParser failed: ", zap.Error(err))
		return fail(ctx, http.StatusBadRequest, badRequestMessage)
	}
	if request.Username == "" || request.TaskID == "" {
		return fail(ctx, http.StatusBadRequest, "Username and task id are required")
	}
	if err := r.controller.RejectTask(ctx.Context(), request.Username, request.TaskID, request.Reason); err != nil {
		return r.businessError(ctx, "controller.RejectTask", err)
	}
	return ctx.JSON(fiber.Map{"success": true, "message": "Task rejected. User notified."})
}

func (r *HttpRouter) AdminData(ctx *fiber.Ctx) error {
	snapshot, err := r.controller.AdminSnapshot(ctx.Context())
	if err != nil {
		return r.businessError(ctx, "controller.AdminSnapshot", err)
	}
	return ctx.JSON(fiber.Map{"success": true, "data": snapshot})
}

func (r *HttpRouter) PendingVerifications(ctx *fiber.Ctx) error {
	pending, err := r.controller.PendingVerifications(ctx.Context())
	if err != nil {
		return r.businessError(ctx, "controller.PendingVerifications", err)
	}
	return ctx.JSON(fiber.Map{"success": true, "pendingVerifications": pending})
}

func (r *HttpRouter) Health(ctx *fiber.Ctx) error {
	users, pending, uptime, err := r.controller.HealthStats(ctx.Context())
	if err != nil {
		return r.businessError(ctx, "controller.HealthStats", err)
	}
	return ctx.JSON(fiber.Map{
		"status":                "healthy",
		"server":                "CRYPTA VPN",
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
		"users":                 users,
		"pending_verifications": pending,
		"uptime":                uptime.Seconds(),
	})
}

// adminName is the identity recorded on manually verified tasks.
func adminName(*fiber.Ctx) string { return "admin" }

func CreateRouter(c appController, cfg *config.Config, logger *zap.Logger) *HttpRouter {
	appLogger := logger.Named("app")
	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	r := &HttpRouter{controller: c, App: app, appLogger: appLogger, httpPort: cfg.HttpPort}
	api := r.Group("/api")
	api.Get("/health", r.Health)

	referral := api.Group("/referral")
	referral.Post("/user/register", r.Register)
	referral.Post("/user/login", r.Login)
	referral.Post("/task/submit", r.SubmitTask)
	referral.Get("/tasks", r.GetTasks)
	referral.Get("/leaderboard", r.GetLeaderboard)

	admin := api.Group("/admin")
	admin.Post("/login", r.AdminLogin)
	protected := admin.Use(middleware.Protected([]byte(cfg.JWTSecret)))
	protected.Post("/approve-task", r.ApproveTask)
	protected.Post("/reject-task", r.RejectTask)
	protected.Get("/data", r.AdminData)
	protected.Get("/pending-verifications", r.PendingVerifications)
	return r
}
