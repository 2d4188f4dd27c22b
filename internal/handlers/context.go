package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/middleware"
	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUser returns the gate-resolved user, writing a 401 when the route was mounted
// without the session gate.
func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthenticated)
		return nil, false
	}
	return user, true
}

// currentActor is currentUser projected onto the service layer's caller type.
func currentActor(c *gin.Context) (services.Actor, bool) {
	user, ok := currentUser(c)
	if !ok {
		return services.Actor{}, false
	}
	return services.Actor{UserID: user.ID, Level: user.AccessLevel}, true
}

// pageFromQuery reads ?page= and ?per_page= into service pagination options.
func pageFromQuery(c *gin.Context) services.PageOptions {
	return services.PageOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 0),
	}
}

// respondList writes a page of results with pagination meta derived from the request.
func respondList(c *gin.Context, items any, total int64, page services.PageOptions) {
	p, perPage := page.Normalise()
	response.SuccessWithMeta(c, http.StatusOK, items, response.NewMeta(p, perPage, total))
}
