package handlers

import (
	"context"
	stdErrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/response"
)

// SessionRevoker revokes every session of a subject.
type SessionRevoker interface {
	RevokeRefreshTokens(ctx context.Context, subject string) error
}

// UserHandler exposes the admin user directory endpoints.
type UserHandler struct {
	directory   *services.UserDirectory
	revoker     SessionRevoker
	revokeOnBan bool
	log         *zap.Logger
}

// NewUserHandler constructs a UserHandler. When revokeOnBan is set, banning a user also
// revokes their sessions.
func NewUserHandler(directory *services.UserDirectory, revoker SessionRevoker, revokeOnBan bool) (*UserHandler, error) {
	if directory == nil {
		return nil, stdErrors.New("user handler: directory is required")
	}
	if revokeOnBan && revoker == nil {
		return nil, stdErrors.New("user handler: revoker is required when revoke on ban is enabled")
	}
	return &UserHandler{
		directory:   directory,
		revoker:     revoker,
		revokeOnBan: revokeOnBan,
		log:         logger.WithModule("users"),
	}, nil
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	page := pageFromQuery(c)
	users, total, err := h.directory.List(requestContext(c), services.ListUsersOptions{
		PageOptions: page,
		Query:       c.Query("q"),
		AccessLevel: models.AccessLevel(strings.ToLower(c.Query("access_level"))),
		Banned:      parseBoolQuery(c, "banned"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, users, total, page)
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.directory.FindByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type banRequest struct {
	Banned *bool  `json:"banned" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// PUT /api/users/:id/ban
func (h *UserHandler) Ban(c *gin.Context) {
	var req banRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	user, err := h.directory.SetBan(ctx, c.Param("id"), *req.Banned, req.Reason, time.Time{})
	if err != nil {
		response.Error(c, err)
		return
	}

	if user.Banned && h.revokeOnBan {
		if err := h.revoker.RevokeRefreshTokens(ctx, sessionSubject(user)); err != nil {
			h.log.Error("revoke sessions of banned user", zap.String("user_id", user.ID), zap.Error(err))
			response.Error(c, err)
			return
		}
	}

	response.Success(c, http.StatusOK, user)
}

type accessRequest struct {
	AccessLevel string `json:"access_level" validate:"required,accesslevel"`
}

// PUT /api/users/:id/access
func (h *UserHandler) SetAccess(c *gin.Context) {
	var req accessRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.directory.SetAccessLevel(requestContext(c), c.Param("id"), models.AccessLevel(req.AccessLevel))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
