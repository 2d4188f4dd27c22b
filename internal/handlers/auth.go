package handlers

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/feelize/platform/internal/auth"
	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/mail"
	"github.com/feelize/platform/pkg/metrics"
	"github.com/feelize/platform/pkg/response"
)

var (
	errInvalidIDToken   = errors.New("INVALID_ID_TOKEN", "Invalid or expired identity token", http.StatusUnauthorized)
	errStaleLogin       = errors.New("RECENT_LOGIN_REQUIRED", "Please sign in again to start a session", http.StatusUnauthorized)
	errUserBanned       = errors.New("USER_BANNED", "This account has been suspended", http.StatusForbidden)
	errPasscodeExpired  = errors.New("PASSCODE_EXPIRED", "Passcode has expired, request a new one", http.StatusBadRequest)
	errPasscodeMismatch = errors.New("PASSCODE_INVALID", "Invalid passcode", http.StatusBadRequest)
)

// AuthHandler manages authentication flows (session/logout/me/passcode).
type AuthHandler struct {
	provider  identity.Provider
	issuer    *iauth.SessionIssuer
	directory *services.UserDirectory
	mailer    mail.Mailer
	mailFrom  string
	devMode   bool
	now       func() time.Time
	log       *zap.Logger
}

// AuthHandlerOptions carries the optional collaborators of AuthHandler.
type AuthHandlerOptions struct {
	Mailer   mail.Mailer
	MailFrom string
	DevMode  bool
	Clock    func() time.Time
}

func NewAuthHandler(provider identity.Provider, issuer *iauth.SessionIssuer, directory *services.UserDirectory, opts AuthHandlerOptions) (*AuthHandler, error) {
	if provider == nil || issuer == nil || directory == nil {
		return nil, stdErrors.New("auth handler: provider, issuer and directory are required")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AuthHandler{
		provider:  provider,
		issuer:    issuer,
		directory: directory,
		mailer:    opts.Mailer,
		mailFrom:  opts.MailFrom,
		devMode:   opts.DevMode,
		now:       opts.Clock,
		log:       logger.WithModule("auth"),
	}, nil
}

type sessionRequest struct {
	IDToken string `json:"id_token"`
}

type sessionResponse struct {
	User      *models.User `json:"user"`
	ExpiresIn int64        `json:"expires_in"`
}

// POST /api/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		var body sessionRequest
		if c.Request.ContentLength > 0 {
			_ = c.ShouldBindJSON(&body)
		}
		token = strings.TrimSpace(body.IDToken)
	}
	if token == "" {
		metrics.AuthAttempts.WithLabelValues("token", "failure").Inc()
		response.Error(c, errors.ErrUnauthenticated.WithMessage("Missing identity token"))
		return
	}

	ctx := requestContext(c)
	id, err := h.provider.VerifyIDToken(ctx, token)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("token", "failure").Inc()
		h.log.Debug("id token rejected", zap.Error(err))
		response.Error(c, errInvalidIDToken)
		return
	}

	// Mint first so a stale sign-in never creates or merges a user record.
	cookie, err := h.issuer.Issue(ctx, token)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("token", "failure").Inc()
		h.respondIssuanceError(c, err)
		return
	}

	user, err := h.directory.ResolveLogin(ctx, *id)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("token", "failure").Inc()
		response.Error(c, err)
		return
	}
	if user.Banned {
		metrics.AuthAttempts.WithLabelValues("token", "failure").Inc()
		response.Error(c, errUserBanned)
		return
	}

	http.SetCookie(c.Writer, cookie.HTTPCookie())
	metrics.AuthAttempts.WithLabelValues("token", "success").Inc()
	response.Success(c, http.StatusOK, sessionResponse{User: user, ExpiresIn: cookie.MaxAgeMillis()})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if value, err := c.Cookie(h.issuer.CookieName()); err == nil && value != "" {
		if err := h.issuer.Revoke(requestContext(c), value); err != nil {
			h.log.Warn("session revocation failed", zap.Error(err))
		}
	}
	http.SetCookie(c.Writer, h.issuer.Clear())
	response.SuccessWithMessage(c, http.StatusOK, "Logged out", nil)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, user)
}

type passcodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/passcode
func (h *AuthHandler) RequestPasscode(c *gin.Context) {
	var req passcodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	code, user, err := h.directory.IssuePasscode(ctx, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.deliverPasscode(ctx, user.Email, code); err != nil {
		h.log.Error("passcode delivery failed", zap.String("user_id", user.ID), zap.Error(err))
		response.Error(c, errors.Upstream("mail", err))
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Passcode sent", nil)
}

func (h *AuthHandler) deliverPasscode(ctx context.Context, email, code string) error {
	if h.mailer == nil {
		h.logUndeliveredPasscode(email, code)
		return nil
	}

	minutes := int(h.directory.PasscodeTTL() / time.Minute)
	err := h.mailer.Send(ctx, mail.Message{
		From:    h.mailFrom,
		To:      []string{email},
		Subject: "Your Feelize sign-in code",
		Body:    fmt.Sprintf("Your sign-in code is %s. It expires in %d minutes.", code, minutes),
	})
	if stdErrors.Is(err, mail.ErrSMTPDisabled) {
		h.logUndeliveredPasscode(email, code)
		return nil
	}
	return err
}

func (h *AuthHandler) logUndeliveredPasscode(email, code string) {
	fields := []zap.Field{zap.String("email", email)}
	if h.devMode {
		fields = append(fields, zap.String("code", code))
	}
	h.log.Warn("smtp disabled, passcode not delivered", fields...)
}

type verifyPasscodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric,min=6,max=8"`
}

type verifyPasscodeResponse struct {
	Verified  bool         `json:"verified"`
	User      *models.User `json:"user"`
	ExpiresIn int64        `json:"expires_in"`
}

// POST /api/auth/passcode/verify
func (h *AuthHandler) VerifyPasscode(c *gin.Context) {
	var req verifyPasscodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	result, user, err := h.directory.ConsumePasscode(ctx, req.Email, req.Code)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("passcode", "failure").Inc()
		response.Error(c, err)
		return
	}
	switch result {
	case services.PasscodeExpired:
		metrics.AuthAttempts.WithLabelValues("passcode", "failure").Inc()
		response.Error(c, errPasscodeExpired)
		return
	case services.PasscodeMismatch:
		metrics.AuthAttempts.WithLabelValues("passcode", "failure").Inc()
		response.Error(c, errPasscodeMismatch)
		return
	}
	if user.Banned {
		metrics.AuthAttempts.WithLabelValues("passcode", "failure").Inc()
		response.Error(c, errUserBanned)
		return
	}

	cookie, err := h.issuer.IssueForIdentity(ctx, passcodeIdentity(user, h.now()))
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("passcode", "failure").Inc()
		h.respondIssuanceError(c, err)
		return
	}

	http.SetCookie(c.Writer, cookie.HTTPCookie())
	metrics.AuthAttempts.WithLabelValues("passcode", "success").Inc()
	response.Success(c, http.StatusOK, verifyPasscodeResponse{Verified: true, User: user, ExpiresIn: cookie.MaxAgeMillis()})
}

// passcodeIdentity builds the session identity for a user proven by passcode. Users already
// bound to an external subject keep it so revocations apply across both login paths.
func passcodeIdentity(user *models.User, now time.Time) identity.Identity {
	return identity.Identity{
		Subject:       sessionSubject(user),
		Email:         user.Email,
		EmailVerified: true,
		Name:          user.Name,
		Picture:       user.Picture,
		AuthTime:      now,
	}
}

// sessionSubject is the subject the user's sessions are minted for.
func sessionSubject(user *models.User) string {
	if user.ExternalID != nil && *user.ExternalID != "" {
		return *user.ExternalID
	}
	return identity.LocalSubject(user.ID)
}

func (h *AuthHandler) respondIssuanceError(c *gin.Context, err error) {
	if stdErrors.Is(err, identity.ErrStaleLogin) {
		response.Error(c, errStaleLogin)
		return
	}
	h.log.Error("session issuance failed", zap.Error(err))
	response.Error(c, errors.Upstream("identity", err))
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

