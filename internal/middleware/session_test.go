package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/feelize/platform/internal/database/testutil"
	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/identity/identitytest"
	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/response"
)

type gateFixture struct {
	router    *gin.Engine
	provider  *identity.Service
	directory *services.UserDirectory
	issuer    *identitytest.TokenIssuer
	now       time.Time
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	f := &gateFixture{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.issuer = identitytest.NewTokenIssuer(t, clock)
	f.provider = identitytest.NewService(t, db, f.issuer, clock)

	directory, err := services.NewUserDirectory(db, services.WithDirectoryClock(clock))
	require.NoError(t, err)
	f.directory = directory

	f.router = gin.New()
	f.router.GET("/secure", SessionAuth(f.provider, f.directory, "session"), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		id, ok := CurrentIdentity(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(CtxUserIDKey),
			"email":   user.Email,
			"subject": id.Subject,
		})
	})
	f.router.GET("/admin",
		SessionAuth(f.provider, f.directory, "session"),
		RequireAccess(models.AccessAdmin),
		func(c *gin.Context) { c.Status(http.StatusNoContent) },
	)
	return f
}

func (f *gateFixture) login(t *testing.T, subject, email string) (string, *models.User) {
	t.Helper()
	ctx := context.Background()

	idToken := f.issuer.IDToken(t, identitytest.Claims{Subject: subject, Email: email})
	id, err := f.provider.VerifyIDToken(ctx, idToken)
	require.NoError(t, err)
	user, err := f.directory.ResolveLogin(ctx, *id)
	require.NoError(t, err)

	cookie, err := f.provider.CreateSessionCookie(ctx, idToken, identity.MaxSessionTTL)
	require.NoError(t, err)
	return cookie, user
}

func (f *gateFixture) do(path, cookie string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: cookie})
	}
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestSessionAuthWithoutCookie(t *testing.T) {
	f := newGateFixture(t)

	w := f.do("/secure", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
	require.Equal(t, "No session cookie found — user not authenticated", body["message"])
}

func TestSessionAuthAdmitsValidSession(t *testing.T) {
	f := newGateFixture(t)
	cookie, user := f.login(t, "uid-alice", "alice@example.com")

	w := f.do("/secure", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, user.ID, payload["user_id"])
	require.Equal(t, "alice@example.com", payload["email"])
	require.Equal(t, "uid-alice", payload["subject"])
}

func TestSessionAuthRejectsGarbageAndExpiredCookies(t *testing.T) {
	f := newGateFixture(t)

	w := f.do("/secure", "not-a-session")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, MsgInvalidSession, decodeEnvelope(t, w).Message)

	cookie, _ := f.login(t, "uid-bob", "bob@example.com")
	f.now = f.now.Add(identity.MaxSessionTTL + time.Second)

	w = f.do("/secure", cookie)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuthRejectsRevokedSession(t *testing.T) {
	f := newGateFixture(t)
	cookie, _ := f.login(t, "uid-carol", "carol@example.com")

	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.provider.RevokeRefreshTokens(context.Background(), "uid-carol"))

	w := f.do("/secure", cookie)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuthRejectsUnknownUser(t *testing.T) {
	f := newGateFixture(t)

	cookie, err := f.provider.CreateSessionForIdentity(context.Background(), identity.Identity{
		Subject:  "uid-ghost",
		Email:    "ghost@example.com",
		AuthTime: f.now,
	}, time.Hour)
	require.NoError(t, err)

	w := f.do("/secure", cookie)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, MsgUserNotFound, decodeEnvelope(t, w).Message)
}

func TestRequireAccess(t *testing.T) {
	f := newGateFixture(t)
	cookie, user := f.login(t, "uid-dana", "dana@example.com")

	w := f.do("/admin", cookie)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "FORBIDDEN", decodeEnvelope(t, w).Error)

	_, err := f.directory.SetAccessLevel(context.Background(), user.ID, models.AccessAdmin)
	require.NoError(t, err)

	w = f.do("/admin", cookie)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireAccessWithoutSessionAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/admin", RequireAccess(models.AccessAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
