package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/ds124wfegd/openmic-lineup/internal/realtime"
	"github.com/ds124wfegd/openmic-lineup/internal/transport/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Close codes sent when the connection credential is rejected.
const (
	CloseTokenExpired = 4001
	CloseTokenInvalid = 4003
)

type TokenIssuer interface {
	NewToken(userID int64, duration time.Duration) (string, error)
}

type WSConfig struct {
	ReadLimit      int64
	TokenTTL       time.Duration
	AllowedOrigins []string
}

type WSHandler struct {
	baseCtx  context.Context
	hub      *realtime.Hub
	resolver middleware.IdentityResolver
	tokens   TokenIssuer
	config   WSConfig
	upgrader websocket.Upgrader
}

// NewWSHandler serves live connections for the lifetime of baseCtx, which
// outlives any single request.
func NewWSHandler(baseCtx context.Context, hub *realtime.Hub, resolver middleware.IdentityResolver, tokens TokenIssuer, config WSConfig) *WSHandler {
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Minute
	}
	return &WSHandler{
		baseCtx:  baseCtx,
		hub:      hub,
		resolver: resolver,
		tokens:   tokens,
		config:   config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(config.AllowedOrigins),
		},
	}
}

func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logrus.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	cookie, _ := c.Cookie(middleware.NonUserCookie)
	identity, err := h.resolver.Resolve(c.Query("token"), cookie, c.ClientIP(), uuid.NewString())
	if err != nil {
		code := CloseTokenInvalid
		if errors.Is(err, entity.ErrTokenExpired) {
			code = CloseTokenExpired
		}
		logrus.WithFields(logrus.Fields{
			"client_ip": c.ClientIP(),
			"code":      code,
		}).Info("Rejected websocket credential")

		msg := websocket.FormatCloseMessage(code, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	if h.config.ReadLimit > 0 {
		conn.SetReadLimit(h.config.ReadLimit)
	}

	client := h.hub.Register(conn, identity)
	h.hub.Run(h.baseCtx, client)
}

// IssueToken hands an authenticated caller a short-lived token for the
// websocket query string.
func (h *WSHandler) IssueToken(c *gin.Context) {
	identity := middleware.IdentityFrom(c)

	token, err := h.tokens.NewToken(identity.UserID, h.config.TokenTTL)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Websocket token issued",
		Data: gin.H{
			"token":      token,
			"expires_in": int(h.config.TokenTTL.Seconds()),
		},
	})
}

func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	if len(allowedOrigins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
