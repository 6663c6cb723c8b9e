package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/squadup/squadup/internal/auth"
	"github.com/squadup/squadup/internal/identity"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/service"
	"github.com/squadup/squadup/internal/storage"
)

// writeError maps domain errors onto status codes. Anything unmapped
// is a 502 when the store failed and a 500 otherwise.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, identity.ErrNotAuthenticated),
		errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrNotSessionCreator),
		errors.Is(err, service.ErrOwnerCannotLeave):
		status = http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, service.ErrCheckinClosed),
		errors.Is(err, service.ErrSessionNotConfirmed),
		errors.Is(err, models.ErrIllegalTransition),
		errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidInviteCode),
		errors.Is(err, service.ErrInvalidResponse),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidHandle):
		status = http.StatusBadRequest
	case storage.Retryable(err):
		// Retries are already spent by the time an error reaches a
		// handler; surface the store outage as such.
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type registerRequest struct {
	Email        string `json:"email" binding:"required"`
	Handle       string `json:"handle" binding:"required"`
	Password     string `json:"password" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.auth.Register(c.Request.Context(), req.Email, req.Handle, req.Password, req.ReferralCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHome(c *gin.Context) {
	snapshot, err := s.loader.LoadHome(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleSquadPage(c *gin.Context) {
	snapshot, err := s.loader.LoadSquadPage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type createSquadRequest struct {
	Name     string `json:"name" binding:"required"`
	Activity string `json:"activity"`
}

func (s *Server) handleCreateSquad(c *gin.Context) {
	var req createSquadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := s.squads.CreateSquad(c.Request.Context(), req.Name, req.Activity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (s *Server) handleListSquads(c *gin.Context) {
	list, err := s.squads.ListSquads(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"squads": list})
}

func (s *Server) handleGetSquad(c *gin.Context) {
	detail, err := s.squads.GetSquad(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type joinSquadRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

func (s *Server) handleJoinSquad(c *gin.Context) {
	var req joinSquadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := s.squads.JoinSquad(c.Request.Context(), req.InviteCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleLeaveSquad(c *gin.Context) {
	if err := s.squads.LeaveSquad(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListSessions(c *gin.Context) {
	list, err := s.sessions.ListSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

type createSessionRequest struct {
	Title           string `json:"title"`
	ScheduledAt     int64  `json:"scheduled_at" binding:"required"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	detail, err := s.sessions.CreateSession(c.Request.Context(), c.Param("id"), req.Title, req.ScheduledAt, req.DurationMinutes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (s *Server) handleUpcoming(c *gin.Context) {
	list, err := s.sessions.Upcoming(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (s *Server) handleGetSession(c *gin.Context) {
	detail, err := s.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type rsvpRequest struct {
	Response models.ResponseValue `json:"response" binding:"required"`
}

func (s *Server) handleRSVP(c *gin.Context) {
	var req rsvpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	detail, err := s.sessions.RSVP(c.Request.Context(), c.Param("id"), req.Response)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleCheckin(c *gin.Context) {
	result, err := s.sessions.Checkin(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleConfirm(c *gin.Context) {
	detail, err := s.sessions.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleCancel(c *gin.Context) {
	detail, err := s.sessions.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type durationRequest struct {
	DurationMinutes int `json:"duration_minutes" binding:"required"`
}

func (s *Server) handleUpdateDuration(c *gin.Context) {
	var req durationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	detail, err := s.sessions.UpdateDuration(c.Request.Context(), c.Param("id"), req.DurationMinutes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleProfile(c *gin.Context) {
	view, err := s.profiles.GetProfile(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleReferrals(c *gin.Context) {
	summary, err := s.profiles.Referrals(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
