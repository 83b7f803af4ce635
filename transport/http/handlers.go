package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
	"github.com/layer-3/hackledger/service"
)

// AuthHandlers contains HTTP handlers for auth and authorization endpoints
type AuthHandlers struct {
	authService  *service.AuthService
	authzService *service.AuthzService
	eventPub     ports.EventPublisher
}

// NewAuthHandlers creates new handlers. eventPub may be nil, which disables
// on-demand sync requests.
func NewAuthHandlers(authService *service.AuthService, authzService *service.AuthzService, eventPub ports.EventPublisher) *AuthHandlers {
	return &AuthHandlers{
		authService:  authService,
		authzService: authzService,
		eventPub:     eventPub,
	}
}

type sessionResponse struct {
	Identity *core.Identity      `json:"identity"`
	Session  *core.IssuedSession `json:"session"`
}

// Identity reports whether an address is registered
func (h *AuthHandlers) Identity(c *gin.Context) {
	registered, identity, err := h.authService.VerifyIdentity(c.Request.Context(), c.Param("address"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := gin.H{"registered": registered}
	if identity != nil {
		resp["identity"] = identity
	}
	c.JSON(http.StatusOK, resp)
}

// Register handles a signed registration
func (h *AuthHandlers) Register(c *gin.Context) {
	var req struct {
		Address   string       `json:"address" binding:"required"`
		Role      string       `json:"role" binding:"required"`
		Signature string       `json:"signature" binding:"required"`
		Message   string       `json:"message" binding:"required"`
		Profile   core.Profile `json:"profile"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	identity, issued, err := h.authService.Register(c.Request.Context(), service.RegisterRequest{
		Address:   req.Address,
		Role:      req.Role,
		Signature: req.Signature,
		Message:   req.Message,
		Profile:   req.Profile,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponse{Identity: identity, Session: issued})
}

// Login handles a signed login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Message   string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	identity, issued, err := h.authService.Login(c.Request.Context(), service.LoginRequest{
		Address:   req.Address,
		Signature: req.Signature,
		Message:   req.Message,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{Identity: identity, Session: issued})
}

// Logout revokes the bearer session
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Identities lists registered identities, optionally by ?role=
func (h *AuthHandlers) Identities(c *gin.Context) {
	var role *core.Role
	if raw := c.Query("role"); raw != "" {
		parsed, err := core.ParseRole(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}
		role = &parsed
	}

	identities, err := h.authService.ListIdentities(c.Request.Context(), role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, identities)
}

// Me returns the authenticated session
func (h *AuthHandlers) Me(c *gin.Context) {
	session := sessionFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"identity_id": session.IdentityID,
		"address":     session.Address,
		"role":        session.Role,
		"expires_at":  session.ExpiresAt,
	})
}

// Authorize checks whether the session holds ?role= for ?hackathon=
func (h *AuthHandlers) Authorize(c *gin.Context) {
	role, err := core.ParseRole(c.Query("role"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	hackathonID, err := strconv.ParseUint(c.Query("hackathon"), 10, 64)
	if err != nil || hackathonID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hackathon id"})
		return
	}

	session := sessionFrom(c)
	authorized, err := h.authzService.IsAuthorized(c.Request.Context(), session.Address, role, hackathonID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": authorized,
		"address":    session.Address,
		"role":       role,
		"hackathon":  hackathonID,
	})
}

// HackathonJudges lists the cached judge assignments of a hackathon
func (h *AuthHandlers) HackathonJudges(c *gin.Context) {
	hackathonID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || hackathonID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hackathon id"})
		return
	}

	judges, err := h.authzService.CachedJudges(c.Request.Context(), hackathonID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(judges))
	for _, j := range judges {
		resp = append(resp, gin.H{"address": j.Address, "last_synced_at": j.LastSyncedAt})
	}
	c.JSON(http.StatusOK, resp)
}

// RequestSync queues an on-demand sync. Organizers may request a full sync or
// one of the hackathons they organize.
func (h *AuthHandlers) RequestSync(c *gin.Context) {
	var req struct {
		HackathonID uint64 `json:"hackathon_id"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}

	session := sessionFrom(c)
	if session.Role != core.RoleOrganizer {
		c.JSON(http.StatusForbidden, gin.H{"error": "Organizer role required"})
		return
	}
	if req.HackathonID != 0 {
		ok, err := h.authzService.IsAuthorized(c.Request.Context(), session.Address, core.RoleOrganizer, req.HackathonID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not the organizer of this hackathon"})
			return
		}
	}

	if h.eventPub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sync requests are disabled"})
		return
	}
	if err := h.eventPub.PublishSyncRequested(c.Request.Context(), req.HackathonID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Sync requested", "hackathon_id": req.HackathonID})
}
