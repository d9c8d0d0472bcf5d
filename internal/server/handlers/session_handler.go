package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/service/session"
)

// SessionHandler exposes the session store over HTTP.
type SessionHandler struct {
	store  *session.Store
	logger *zap.Logger
}

// NewSessionHandler constructs the HTTP handler adapter.
func NewSessionHandler(store *session.Store, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{store: store, logger: logger}
}

// Get returns the session state of the caller.
func (h *SessionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.callerState(c))
}

type loginResponse struct {
	session.State
	Token string `json:"token"`
}

// Login checks the submitted credentials. On success the session token is
// returned in the body and set as an HttpOnly cookie.
func (h *SessionHandler) Login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		h.logger.Debug("invalid login payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	token, err := h.store.Login(c.Request.Context(), creds)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrInvalidCredentials):
		st := h.callerState(c)
		st.Error = session.MsgInvalidCredentials
		c.JSON(http.StatusUnauthorized, st)
		return
	default:
		h.logger.Error("login failed", zap.Error(err))
		st := h.callerState(c)
		st.Error = session.MsgLoginFailed
		c.JSON(http.StatusInternalServerError, st)
		return
	}

	user, err := h.store.Authorize(token)
	if err != nil {
		h.logger.Error("issued token rejected", zap.Error(err))
		c.JSON(http.StatusInternalServerError, session.State{Status: session.StatusAnonymous, Error: session.MsgLoginFailed})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, token, 0, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, loginResponse{State: authenticated(user), Token: token})
}

// Logout signs out the caller's token only.
func (h *SessionHandler) Logout(c *gin.Context) {
	if token := requestToken(c); token != "" {
		err := h.store.Revoke(c.Request.Context(), token)
		if err != nil && !errors.Is(err, session.ErrUnauthorized) {
			h.logger.Error("failed to purge session record", zap.Error(err))
		}
	}
	c.SetCookie(tokenCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, session.State{Status: session.StatusAnonymous})
}

// ClearError dismisses the last login error.
func (h *SessionHandler) ClearError(c *gin.Context) {
	h.store.ClearError()
	c.JSON(http.StatusOK, h.callerState(c))
}

// RequireSession rejects requests without a valid session token.
func (h *SessionHandler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.store.Authorize(requestToken(c))
		if err != nil {
			h.logger.Debug("session token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "status": session.StatusAnonymous})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

func (h *SessionHandler) callerState(c *gin.Context) session.State {
	if h.store.State().Status == session.StatusChecking {
		return session.State{Status: session.StatusChecking}
	}
	user, err := h.store.Authorize(requestToken(c))
	if err != nil {
		return session.State{Status: session.StatusAnonymous}
	}
	return authenticated(user)
}

func authenticated(user models.User) session.State {
	return session.State{Status: session.StatusAuthenticated, Authenticated: true, User: &user}
}

const (
	userContextKey = "session.user"
	tokenCookie    = session.TokenKey
)

// requestToken reads the bearer token, falling back to the session cookie.
func requestToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if token, err := c.Cookie(tokenCookie); err == nil {
		return token
	}
	return ""
}

func currentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}
