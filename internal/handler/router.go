package handler

import (
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"idcard/internal/auth"
	"idcard/internal/httpmiddleware"
)

// RouterConfig holds the HTTP-level settings of the API.
type RouterConfig struct {
	CORSOrigins     []string
	RateLimitPerMin int
	MaxUploadBytes  int64
	MetricsHandler  http.Handler
	AccessLog       io.Writer
}

// NewRouter wires every route of the API.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.AccessLog != nil {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			Output:    cfg.AccessLog,
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(securityHeaders())

	r.GET("/healthz", h.Healthz)
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	r.GET("/logo", h.Logo)

	api := r.Group("/api")
	api.GET("/setup", h.Setup)

	limiter := httpmiddleware.NewLoginLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware()
	authGroup := api.Group("/auth")
	authGroup.POST("/student/login", limiter, h.StudentLogin)
	authGroup.POST("/admin/login", limiter, h.AdminLogin)
	authGroup.POST("/refresh", h.Refresh)
	authGroup.POST("/logout", h.Logout)

	upload := httpmiddleware.MaxBodySize(cfg.MaxUploadBytes)
	api.POST("/students/register", upload, h.RegisterStudent)
	api.POST("/admins", auth.OptionalAuthenticate(h.tokens), h.RegisterAdmin)

	authed := api.Group("", auth.Authenticate(h.tokens))
	authed.GET("/files/passport/:id", h.PassportFile)
	authed.GET("/files/receipt/:id", h.ReceiptFile)

	me := authed.Group("/me", auth.RequireRole(auth.RoleStudent))
	me.GET("", h.Me)
	me.PUT("", h.UpdateMe)
	me.POST("/uploads", upload, h.UpdateUploads)
	me.POST("/receipt", upload, h.UploadReceipt)
	me.GET("/card.png", h.MyCardPreview)
	me.GET("/card.pdf", h.MyCardPDF)

	admin := authed.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/students", h.ListStudents)
	admin.POST("/students", h.AddStudent)
	admin.POST("/students/:id/approval", h.SetApproval)
	admin.GET("/students/:id/card.pdf", h.StudentCardPDF)
	admin.DELETE("/users/:id", h.DeleteUser)
	admin.GET("/export.csv", h.ExportCSV)

	return r
}

// Healthz reports the reachability of every configured dependency.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cors.New(cfg)
	}
	cfg.AllowOrigins = origins
	return cors.New(cfg)
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
