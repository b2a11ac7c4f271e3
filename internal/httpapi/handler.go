package httpapi

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"schoolregistry/internal/attendance"
	"schoolregistry/internal/auth"
	"schoolregistry/internal/config"
	"schoolregistry/internal/guardian"
	"schoolregistry/internal/media"
	"schoolregistry/internal/queue"
	"schoolregistry/internal/registry"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// TokenStore persists refresh tokens for rotation. registry.Repository
// satisfies it.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	RefreshTokenLive(ctx context.Context, token string) (bool, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// NotificationStore reads parent notifications. registry.Repository
// satisfies it.
type NotificationStore interface {
	ListNotifications(ctx context.Context, parentID int64, limit int) ([]registry.Notification, error)
}

// Deps bundles everything the handlers need.
type Deps struct {
	Registry   *registry.Service
	Guardians  *guardian.Service
	Attendance *attendance.Service
	Notes      NotificationStore
	Tokens     TokenStore
	Queue      queue.Queue
	Media      *media.Client // nil when Cloudinary is not configured
	Cfg        config.App
}

// Handler exposes the REST endpoints over the services.
type Handler struct {
	registry   *registry.Service
	guardians  *guardian.Service
	attendance *attendance.Service
	notes      NotificationStore
	tokens     TokenStore
	queue      queue.Queue
	media      *media.Client
	cfg        config.App
}

// New creates a handler.
func New(d Deps) *Handler {
	return &Handler{
		registry:   d.Registry,
		guardians:  d.Guardians,
		attendance: d.Attendance,
		notes:      d.Notes,
		tokens:     d.Tokens,
		queue:      d.Queue,
		media:      d.Media,
		cfg:        d.Cfg,
	}
}

// Routes mounts all endpoints on the router.
func (h *Handler) Routes(r *gin.Engine) {
	v1 := r.Group("/v1")

	// Public surface.
	v1.POST("/public/register", h.PublicRegister)
	v1.POST("/login", h.ParentLogin)
	v1.POST("/teachers/login", h.TeacherLogin)
	v1.POST("/auth/refresh", h.Refresh)
	v1.GET("/parents/:id", h.GetParent)
	v1.PATCH("/parents/:id", h.PatchParent)
	v1.POST("/guardians", h.CreateGuardian)
	v1.GET("/notifications", h.ListNotifications)
	v1.GET("/events", h.ListEvents)
	v1.GET("/schedules", h.ListSchedules)

	// Teacher surface.
	teacher := v1.Group("", auth.Bearer(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, auth.RoleTeacher))
	teacher.POST("/register", h.Register)
	teacher.GET("/students", h.ListStudents)
	teacher.GET("/students/:lrn", h.StudentDetail)
	teacher.GET("/parents", h.ListParents)
	teacher.GET("/guardians", h.ListGuardians)
	teacher.GET("/guardians/:id", h.GuardianDetail)
	teacher.GET("/guardians/:id/approvals", h.GuardianApprovals)
	teacher.POST("/guardians/:id/approval", h.PostApproval)
	teacher.POST("/guardians/bulk-status", h.BulkStatus)
	teacher.POST("/events", h.CreateEvent)
	teacher.POST("/schedules", h.CreateSchedule)
	teacher.POST("/attendance/scan", h.ScanAttendance)
	teacher.GET("/attendance", h.ListAttendance)
	teacher.GET("/unauthorized", h.ListUnauthorized)
}

// claimsFrom returns the parsed bearer claims set by the auth middleware.
func claimsFrom(c *gin.Context) auth.Claims {
	v, _ := c.Get("claims")
	claims, _ := v.(auth.Claims)
	return claims
}

// parsePage reads page/page_size query params with the listing defaults.
func parsePage(c *gin.Context) (limit, offset int) {
	page := 1
	if v := c.Query("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}
	limit = defaultPageSize
	if v := c.Query("page_size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, (page - 1) * limit
}

// publish fires a queue event; failures are logged, not surfaced.
func (h *Handler) publish(ctx context.Context, msg queue.Message) {
	if h.queue == nil {
		return
	}
	if err := h.queue.Publish(ctx, msg); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}
