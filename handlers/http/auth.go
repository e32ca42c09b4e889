package httpHandler

import (
	"net/http"

	"task-server/apperr"
	"task-server/auth"
	"task-server/entities"
	"task-server/metrics"
	"task-server/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	uc     *usecases.AuthUseCase
	authn  *auth.Authenticator
	cookie auth.CookieOptions
	log    zerolog.Logger
}

func NewAuthHandler(uc *usecases.AuthUseCase, authn *auth.Authenticator, cookie auth.CookieOptions, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{uc: uc, authn: authn, cookie: cookie, log: log}
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func userView(u *entities.User) gin.H {
	return gin.H{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RecordAuthAttempt("register", false)
		writeError(c, h.log, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}

	user, token, err := h.uc.Register(req.Username, req.Password)
	metrics.RecordAuthAttempt("register", err == nil)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.cookie.Set(c.Writer, token)
	h.log.Info().Str("user", user.Username).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{
		"message": "registration successful",
		"user":    userView(user),
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RecordAuthAttempt("login", false)
		writeError(c, h.log, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}

	user, token, err := h.uc.Login(req.Username, req.Password)
	metrics.RecordAuthAttempt("login", err == nil)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.cookie.Set(c.Writer, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "login successful",
		"user":    userView(user),
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookie.Clear(c.Writer)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p, err := h.authn.Authenticate(auth.CookieCarrier{Request: c.Request, Name: h.cookie.Name})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": p.UserID, "username": p.Username}})
}
