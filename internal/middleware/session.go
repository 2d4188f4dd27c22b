package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/metrics"
	"github.com/feelize/platform/pkg/response"
)

const (
	CtxUserKey   = "authUser"
	CtxUserIDKey = "userID"
	CtxClaimsKey = "authClaims"
)

// Gate rejection messages, part of the public contract of the API.
const (
	MsgNoSessionCookie = "No session cookie found — user not authenticated"
	MsgInvalidSession  = "Invalid or expired session"
	MsgUserNotFound    = "User not found"
)

// SessionVerifier decodes a session cookie into an identity.
type SessionVerifier interface {
	VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*identity.Identity, error)
}

// UserLookup resolves the subject carried by a session to a stored user.
type UserLookup interface {
	FindBySubject(ctx context.Context, subject string) (*models.User, error)
}

// SessionAuth admits only requests carrying a valid, unrevoked session cookie that maps to a
// known user. The user and the decoded identity are stored on the gin context.
func SessionAuth(verifier SessionVerifier, users UserLookup, cookieName string) gin.HandlerFunc {
	log := logger.WithModule("gate")

	return func(c *gin.Context) {
		cookie, err := c.Cookie(cookieName)
		if err != nil || cookie == "" {
			reject(c, "missing_cookie", MsgNoSessionCookie)
			return
		}

		claims, err := verifier.VerifySessionCookie(c.Request.Context(), cookie, true)
		if err != nil {
			reason := "invalid_session"
			if errors.Is(err, identity.ErrRevoked) {
				reason = "revoked"
			}
			log.Debug("session rejected", zap.String("reason", reason), zap.Error(err))
			reject(c, reason, MsgInvalidSession)
			return
		}

		user, err := users.FindBySubject(c.Request.Context(), claims.Subject)
		if err != nil {
			if isNotFound(err) {
				reject(c, "unknown_user", MsgUserNotFound)
				return
			}
			log.Error("load session user", zap.String("subject", claims.Subject), zap.Error(err))
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxUserKey, user)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// CurrentUser returns the user stored by SessionAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// CurrentIdentity returns the decoded session identity stored by SessionAuth.
func CurrentIdentity(c *gin.Context) (*identity.Identity, bool) {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*identity.Identity)
	return id, ok && id != nil
}

func reject(c *gin.Context, reason, message string) {
	metrics.GateRejections.WithLabelValues(reason).Inc()
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.Response{
		Success: false,
		Message: message,
		Error:   apperrors.ErrUnauthenticated.Code,
	})
}

func isNotFound(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.StatusCode == http.StatusNotFound
}
