package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/app"
	iauth "github.com/feelize/platform/internal/auth"
	"github.com/feelize/platform/internal/database/testutil"
	"github.com/feelize/platform/internal/identity/identitytest"
	"github.com/feelize/platform/internal/middleware"
	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/mail"
)

const adminEmail = "admin@feelize.test"

type outbox struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

func (o *outbox) last(t *testing.T) mail.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.messages)
	return o.messages[len(o.messages)-1]
}

type routerFixture struct {
	router *gin.Engine
	tokens *identitytest.TokenIssuer
	mail   *outbox
	db     *gorm.DB
	now    time.Time
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAdmins(adminEmail))
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tokens := identitytest.NewTokenIssuer(t, clock)
	provider := identitytest.NewService(t, db, tokens, clock)
	directory, err := services.NewUserDirectory(db, services.WithDirectoryClock(clock))
	require.NoError(t, err)
	issuer, err := iauth.NewSessionIssuer(provider, iauth.SessionConfig{CookieName: "session", DevMode: true})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.DevMode = true
	cfg.Server.ClientOrigin = []string{"http://localhost:3000"}
	cfg.Auth.Passcode.RateLimit = app.RateLimit{Requests: 2, Window: time.Minute}

	box := &outbox{}
	router, err := NewRouter(Dependencies{
		Config:    cfg,
		DB:        db,
		Provider:  provider,
		Issuer:    issuer,
		Directory: directory,
		Mailer:    box,
		Clock:     clock,
	})
	require.NoError(t, err)

	return &routerFixture{router: router, tokens: tokens, mail: box, db: db, now: now}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, cookie *http.Cookie, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func (f *routerFixture) login(t *testing.T, subject, email string) *http.Cookie {
	t.Helper()
	token := f.tokens.IDToken(t, identitytest.Claims{Subject: subject, Email: email, Name: "Test User"})
	w, env := f.do(t, http.MethodPost, "/api/auth/session", nil, nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)
	return sessionCookie(t, w)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	f := newRouterFixture(t)

	w, env := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	require.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w, _ = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "feelize_api_latency_seconds")
}

func TestRouterRejectsRequestsWithoutSession(t *testing.T) {
	f := newRouterFixture(t)

	for _, path := range []string{"/api/auth/me", "/api/projects", "/api/users"} {
		w, env := f.do(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
		require.False(t, env.Success)
		require.Equal(t, middleware.MsgNoSessionCookie, env.Message)
	}
}

func TestRouterUnknownRouteAndMethod(t *testing.T) {
	f := newRouterFixture(t)

	w, env := f.do(t, http.MethodGet, "/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", env.Error)

	w, env = f.do(t, http.MethodDelete, "/health", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, "METHOD_NOT_ALLOWED", env.Error)
}

func TestRouterSessionLoginAndLogout(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.login(t, "uid-client", "client@example.com")

	w, env := f.do(t, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Email       string `json:"email"`
		AccessLevel string `json:"access_level"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	require.Equal(t, "client@example.com", me.Email)
	require.Equal(t, "client", me.AccessLevel)

	w, env = f.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Logged out", env.Message)
}

func TestRouterAdminRoutesRequireAdmin(t *testing.T) {
	f := newRouterFixture(t)

	client := f.login(t, "uid-client", "client@example.com")
	w, env := f.do(t, http.MethodGet, "/api/users", nil, client)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "FORBIDDEN", env.Error)

	admin := f.login(t, "uid-admin", adminEmail)
	w, env = f.do(t, http.MethodGet, "/api/users", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)
}

func TestRouterPasscodeFlow(t *testing.T) {
	f := newRouterFixture(t)

	w, env := f.do(t, http.MethodPost, "/api/auth/passcode", map[string]string{"email": "new@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "Passcode sent", env.Message)

	code := regexp.MustCompile(`\d{6}`).FindString(f.mail.last(t).Body)
	require.NotEmpty(t, code)

	w, env = f.do(t, http.MethodPost, "/api/auth/passcode/verify", map[string]string{"email": "new@example.com", "code": code}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verified struct {
		Verified bool `json:"verified"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &verified))
	require.True(t, verified.Verified)

	w, _ = f.do(t, http.MethodGet, "/api/auth/me", nil, sessionCookie(t, w))
	require.Equal(t, http.StatusOK, w.Code)

	// the code is single use
	w, env = f.do(t, http.MethodPost, "/api/auth/passcode/verify", map[string]string{"email": "new@example.com", "code": code}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, env.Success)
}

func TestRouterPasscodeRequestsAreRateLimited(t *testing.T) {
	f := newRouterFixture(t)

	body := map[string]string{"email": "spam@example.com"}
	for i := 0; i < 2; i++ {
		w, _ := f.do(t, http.MethodPost, "/api/auth/passcode", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, env := f.do(t, http.MethodPost, "/api/auth/passcode", body, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error)
}

func TestRouterBookingWebhookAttributesReferral(t *testing.T) {
	f := newRouterFixture(t)

	owner := f.login(t, "uid-affiliate", "affiliate@example.com")
	w, env := f.do(t, http.MethodPost, "/api/affiliates", map[string]any{"name": "Ada", "referral_code": "SAVE10"}, owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	admin := f.login(t, "uid-admin", adminEmail)
	w, _ = f.do(t, http.MethodPut, "/api/affiliates/"+created.ID+"/status", map[string]string{"status": "active"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = f.do(t, http.MethodGet, "/api/affiliates/check-code/save10", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"code":"SAVE10","available":false}`, string(env.Data))

	booking := map[string]any{
		"triggerEvent": "BOOKING_CREATED",
		"payload": map[string]any{
			"uid":       "bk-1",
			"title":     "Discovery call",
			"startTime": "2026-05-05T09:00:00Z",
			"endTime":   "2026-05-05T09:30:00Z",
			"attendees": []map[string]string{{"email": "lead@example.com", "name": "Lead"}},
			"metadata":  map[string]string{"referral_code": "save10"},
		},
	}

	var referralIDs []string
	for i := 0; i < 2; i++ {
		w, env = f.do(t, http.MethodPost, "/meetings", booking, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var outcome struct {
			Meeting struct {
				Status string `json:"status"`
			} `json:"meeting"`
			Created  bool `json:"created"`
			Referral *struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"referral"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &outcome))
		require.Equal(t, i == 0, outcome.Created)
		require.Equal(t, "booked", outcome.Meeting.Status)
		require.NotNil(t, outcome.Referral)
		require.Equal(t, "booked", outcome.Referral.Status)
		referralIDs = append(referralIDs, outcome.Referral.ID)
	}
	require.Equal(t, referralIDs[0], referralIDs[1])

	w, env = f.do(t, http.MethodGet, "/api/affiliates/me", nil, owner)
	require.Equal(t, http.StatusOK, w.Code)
	var affiliate struct {
		TotalReferrals int64 `json:"total_referrals"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &affiliate))
	require.EqualValues(t, 1, affiliate.TotalReferrals)

	cancel := map[string]any{"triggerEvent": "BOOKING_CANCELLED", "payload": map[string]any{"uid": "bk-1"}}
	w, env = f.do(t, http.MethodPost, "/meetings", cancel, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, string(env.Data), `"status":"cancelled"`)
}

func TestRouterBookingWebhookEdgeCases(t *testing.T) {
	f := newRouterFixture(t)

	w, env := f.do(t, http.MethodPost, "/meetings", map[string]any{"triggerEvent": "MEETING_ENDED"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	require.Equal(t, "ignored", env.Message)

	w, _ = f.do(t, http.MethodPost, "/meetings", map[string]any{
		"triggerEvent": "BOOKING_CANCELLED",
		"payload":      map[string]any{"uid": "missing"},
	}, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPost, "/meetings", []byte("{not json"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterProjectsAreScopedToOwner(t *testing.T) {
	f := newRouterFixture(t)

	alice := f.login(t, "uid-alice", "alice@example.com")
	bob := f.login(t, "uid-bob", "bob@example.com")

	w, env := f.do(t, http.MethodPost, "/api/projects", map[string]any{"title": "Landing page", "description": "Marketing site"}, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var project struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &project))
	require.Equal(t, "inquiry", project.Status)

	w, _ = f.do(t, http.MethodGet, "/api/projects/"+project.ID, nil, alice)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/projects/"+project.ID, nil, bob)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/projects/"+project.ID+"/messages", map[string]string{"body": "hello"}, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	admin := f.login(t, "uid-admin", adminEmail)
	w, env = f.do(t, http.MethodGet, "/api/activities?project_id="+project.ID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	var feed []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	require.NotEmpty(t, feed)
}

func TestRouterEngineerDirectory(t *testing.T) {
	f := newRouterFixture(t)

	w, _ := f.do(t, http.MethodGet, "/api/engineers", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	client := f.login(t, "uid-client", "client@example.com")
	body := map[string]any{"name": "Grace", "email": "grace@feelize.test", "skills": []string{"go"}}
	w, _ = f.do(t, http.MethodPost, "/api/engineers", body, client)
	require.Equal(t, http.StatusForbidden, w.Code)

	admin := f.login(t, "uid-admin", adminEmail)
	w, _ = f.do(t, http.MethodPost, "/api/engineers", body, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRouterPasscodeVerifyIsRateLimited(t *testing.T) {
	f := newRouterFixture(t)

	body := map[string]string{"email": "guess@example.com", "code": "000000"}
	for i := 0; i < 2; i++ {
		w, _ := f.do(t, http.MethodPost, "/api/auth/passcode/verify", body, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	w, env := f.do(t, http.MethodPost, "/api/auth/passcode/verify", body, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error)
}

func TestRouterStaleLoginCreatesNoUser(t *testing.T) {
	f := newRouterFixture(t)

	token := f.tokens.IDToken(t, identitytest.Claims{
		Subject:  "uid-stale",
		Email:    "stale@example.com",
		AuthTime: f.now.Add(-time.Hour),
	})
	w, env := f.do(t, http.MethodPost, "/api/auth/session", nil, nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "RECENT_LOGIN_REQUIRED", env.Error)
	require.Empty(t, w.Result().Cookies())

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "stale@example.com").Count(&count).Error)
	require.Zero(t, count)
}

func TestRouterUpdatesAcceptPut(t *testing.T) {
	f := newRouterFixture(t)
	admin := f.login(t, "uid-admin", adminEmail)

	created := func(path string, body any) string {
		t.Helper()
		w, env := f.do(t, http.MethodPost, path, body, admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var res struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &res))
		require.NotEmpty(t, res.ID)
		return res.ID
	}

	projectID := created("/api/projects", map[string]any{"title": "Portal"})
	taskID := created("/api/tasks", map[string]any{"project_id": projectID, "title": "Wireframes"})
	affiliateID := created("/api/affiliates", map[string]any{"referral_code": "PUTME1"})
	engineerID := created("/api/engineers", map[string]any{"name": "Ada", "email": "ada@feelize.test"})

	cases := []struct {
		path string
		body map[string]any
		key  string
		want any
	}{
		{"/api/projects/" + projectID, map[string]any{"title": "Client portal"}, "title", "Client portal"},
		{"/api/tasks/" + taskID, map[string]any{"title": "Hi-fi mockups"}, "title", "Hi-fi mockups"},
		{"/api/affiliates/" + affiliateID, map[string]any{"name": "Partner Co"}, "name", "Partner Co"},
		{"/api/engineers/" + engineerID, map[string]any{"title": "Staff engineer"}, "title", "Staff engineer"},
	}
	for _, tc := range cases {
		for _, method := range []string{http.MethodPut, http.MethodPatch} {
			w, env := f.do(t, method, tc.path, tc.body, admin)
			require.Equal(t, http.StatusOK, w.Code, "%s %s: %s", method, tc.path, w.Body.String())
			var got map[string]any
			require.NoError(t, json.Unmarshal(env.Data, &got))
			require.Equal(t, tc.want, got[tc.key], "%s %s", method, tc.path)
		}
	}
}
