// Package server wires the HTTP surface: routing, authentication
// middleware and the JSON handlers over the service layer.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/squadup/squadup/internal/auth"
	"github.com/squadup/squadup/internal/service"
)

// Server holds the handler dependencies.
type Server struct {
	auth     *service.AuthService
	squads   *service.SquadService
	sessions *service.SessionService
	profiles *service.ProfileService
	loader   *service.PageLoader
	jwt      *auth.JWTManager
}

// New creates a Server.
func New(
	authService *service.AuthService,
	squads *service.SquadService,
	sessions *service.SessionService,
	profiles *service.ProfileService,
	loader *service.PageLoader,
	jwt *auth.JWTManager,
) *Server {
	return &Server{
		auth:     authService,
		squads:   squads,
		sessions: sessions,
		profiles: profiles,
		loader:   loader,
		jwt:      jwt,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(), requestMetrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)

	authed := v1.Group("", s.authenticate())
	authed.GET("/home", s.handleHome)

	authed.GET("/squads", s.handleListSquads)
	authed.POST("/squads", s.handleCreateSquad)
	authed.POST("/squads/join", s.handleJoinSquad)
	authed.GET("/squads/:id", s.handleGetSquad)
	authed.GET("/squads/:id/page", s.handleSquadPage)
	authed.POST("/squads/:id/leave", s.handleLeaveSquad)
	authed.GET("/squads/:id/sessions", s.handleListSessions)
	authed.POST("/squads/:id/sessions", s.handleCreateSession)

	authed.GET("/sessions/upcoming", s.handleUpcoming)
	authed.GET("/sessions/:id", s.handleGetSession)
	authed.POST("/sessions/:id/rsvp", s.handleRSVP)
	authed.POST("/sessions/:id/checkin", s.handleCheckin)
	authed.POST("/sessions/:id/confirm", s.handleConfirm)
	authed.POST("/sessions/:id/cancel", s.handleCancel)
	authed.PATCH("/sessions/:id/duration", s.handleUpdateDuration)

	authed.GET("/profile", s.handleProfile)
	authed.GET("/profile/referrals", s.handleReferrals)

	return r
}
