// Package api exposes the attendance dashboard over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classattend/internal/activity"
	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/cloudinary"
	"classattend/internal/dashboard"
	"classattend/internal/httpmiddleware"
	"classattend/internal/metrics"
	"classattend/internal/schedule"
	"classattend/internal/session"
)

// SessionStore holds the current session per class; *session.Registry implements it.
type SessionStore interface {
	Put(ctx context.Context, s *session.Session) error
	Current(ctx context.Context, className string) (*session.Session, error)
	Clear(ctx context.Context, className string) error
}

// RecordLister pages through stored attendance; *attendance.Repository implements it.
type RecordLister interface {
	ListRecords(ctx context.Context, f attendance.Filter) ([]attendance.Record, error)
}

type ProfileStore interface {
	UpsertProfile(ctx context.Context, userID, fullName, role string) error
	SetProfilePicture(ctx context.Context, userID, url string) error
}

type ActivityStore interface {
	Create(ctx context.Context, a activity.Activity) (activity.Activity, error)
	List(ctx context.Context, limit int) ([]activity.Activity, error)
}

// ScheduleStore holds the timetable; *schedule.Repository implements it.
type ScheduleStore interface {
	Create(ctx context.Context, e schedule.Entry) (schedule.Entry, error)
	Day(ctx context.Context, day time.Time) ([]schedule.Entry, error)
}

type Summaries interface {
	Get(ctx context.Context, classID, studentID string) (dashboard.Summary, error)
}

// Uploader stores profile pictures; *cloudinary.Client implements it.
type Uploader interface {
	UploadProfilePicture(ctx context.Context, userID string, data []byte, filename string) (*cloudinary.UploadResult, error)
	UploadProfilePictureBase64(ctx context.Context, userID, data string) (*cloudinary.UploadResult, error)
}

// Deps are the collaborators behind the routes. Uploads and Limiter may be nil.
// Clock defaults to the system clock and Catalogue to schedule.DefaultCatalogue.
type Deps struct {
	Sessions   SessionStore
	Issuer     *session.Issuer
	Attendance *attendance.Service
	Records    RecordLister
	Summaries  Summaries
	Activities ActivityStore
	Schedule   ScheduleStore
	Catalogue  []schedule.Suggestion
	Clock      session.Clock
	Profiles   ProfileStore
	Uploads    Uploader
	Signer     *auth.Signer
	Limiter    httpmiddleware.Limiter
	Health     func(ctx context.Context) map[string]bool

	DefaultTTLMinutes int
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	if d.DefaultTTLMinutes <= 0 {
		d.DefaultTTLMinutes = 5
	}
	if d.Clock == nil {
		d.Clock = session.SystemClock()
	}
	if d.Catalogue == nil {
		d.Catalogue = schedule.DefaultCatalogue
	}
	h := &handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}))
	r.Use(securityHeaders())
	if d.Limiter != nil {
		r.Use(httpmiddleware.Middleware(d.Limiter))
	}
	r.Use(metrics.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.healthz)
	r.POST("/v1/auth/token", h.issueToken)

	v1 := r.Group("/v1", auth.Bearer(d.Signer))

	teacher := v1.Group("", auth.RequireRole(auth.RoleTeacher))
	teacher.POST("/sessions", h.issueSession)
	teacher.GET("/sessions/:class", h.currentSession)
	teacher.GET("/sessions/:class/qr.png", h.sessionQR)
	teacher.DELETE("/sessions/:class", h.clearSession)
	teacher.POST("/attendance/face", h.markFace)
	teacher.POST("/attendance/manual", h.markManual)
	teacher.POST("/activities", h.createActivity)
	teacher.POST("/schedule", h.createScheduleEntry)

	v1.POST("/attendance/scan", auth.RequireRole(auth.RoleStudent), h.scan)
	v1.GET("/attendance/summary", h.summary)
	v1.GET("/attendance/records", h.listRecords)
	v1.GET("/activities", h.listActivities)
	v1.GET("/schedule", h.listSchedule)
	v1.GET("/schedule/suggestions", auth.RequireRole(auth.RoleStudent), h.suggestions)
	v1.POST("/profile/picture", h.uploadPicture)

	return r
}

func (h *handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	if h.Health != nil {
		for name, ok := range h.Health(c.Request.Context()) {
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
	}
	c.JSON(status, body)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	claims, _ := auth.ClaimsFrom(c)
	return claims.Subject
}

func role(c *gin.Context) string {
	claims, _ := auth.ClaimsFrom(c)
	return claims.Role
}
