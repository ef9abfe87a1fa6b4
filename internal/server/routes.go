package server

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safeform/internal/auth"
	"safeform/internal/logger"
	"safeform/internal/metrics"
	"safeform/internal/server/routes"
)

func (s *Server) RegisterRoutes() http.Handler {
	secure := strings.HasPrefix(s.cfg.Server.FrontendURL, "https://")
	providers := auth.InitGothProviders(s.cfg.Auth, s.cfg.Server.SessionSecret, secure)
	logger.Infof("oauth providers enabled: %v", providers)

	r := gin.New()
	r.Use(routes.Recovery())
	r.Use(routes.RequestLogger())
	r.Use(metrics.Middleware())

	// Set up sessions
	store := cookie.NewStore([]byte(s.cfg.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("safeform-session", store))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "If-Match"},
		AllowCredentials: true,
	}))

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.NewAuthRoutes(s).RegisterRoutes(r)
	routes.NewUserRoutes(s).RegisterRoutes(r)
	routes.NewNotificationRoutes(s).RegisterRoutes(r)
	routes.NewOrganizationRoutes(s).RegisterRoutes(r)
	routes.NewTemplateRoutes(s).RegisterRoutes(r)
	routes.NewSubmissionRoutes(s).RegisterRoutes(r)
	routes.NewAttachmentRoutes(s).RegisterRoutes(r)

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	health := s.db.Health()
	status := http.StatusOK
	if health["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
