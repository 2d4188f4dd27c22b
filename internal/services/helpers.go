package services

import (
	"context"
	"strings"
	"time"

	"github.com/feelize/platform/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Clock returns the current time; services accept one so tests can pin it.
type Clock func() time.Time

// PageOptions controls pagination for list operations.
type PageOptions struct {
	Page     int
	PageSize int
}

// Normalise applies the default and maximum page size.
func (p PageOptions) Normalise() (page, perPage int) {
	page = p.Page
	if page <= 0 {
		page = 1
	}
	perPage = p.PageSize
	if perPage <= 0 || perPage > maxPageSize {
		perPage = defaultPageSize
	}
	return page, perPage
}

func (p PageOptions) offset() int {
	page, perPage := p.Normalise()
	return (page - 1) * perPage
}

func (p PageOptions) limit() int {
	_, perPage := p.Normalise()
	return perPage
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normaliseEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func optionalID(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// Actor is the authenticated caller on whose behalf a service operation runs.
type Actor struct {
	UserID string
	Level  models.AccessLevel
}

// IsAdmin reports whether the actor holds the admin access level.
func (a Actor) IsAdmin() bool {
	return a.Level == models.AccessAdmin
}

// seesAllProjects reports whether the actor may read every project rather than only their own.
func (a Actor) seesAllProjects() bool {
	return a.Level == models.AccessAdmin || a.Level == models.AccessEngineer
}
