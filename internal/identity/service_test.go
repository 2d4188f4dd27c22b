package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feelize/platform/internal/database/testutil"
	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/identity/identitytest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) (*identity.Service, *identitytest.TokenIssuer, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	issuer := identitytest.NewTokenIssuer(t, clock.Now)
	return identitytest.NewService(t, db, issuer, clock.Now), issuer, clock
}

func TestVerifyIDToken(t *testing.T) {
	svc, issuer, _ := newFixture(t)
	raw := issuer.IDToken(t, identitytest.Claims{Subject: "uid-1", Email: "Ada@Example.com", Name: "Ada"})

	id, err := svc.VerifyIDToken(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "uid-1", id.Subject)
	require.Equal(t, "ada@example.com", id.Email)
	require.Equal(t, "Ada", id.Name)
	require.True(t, id.EmailVerified)
}

func TestVerifyIDTokenFailures(t *testing.T) {
	svc, issuer, _ := newFixture(t)

	_, err := svc.VerifyIDToken(context.Background(), "")
	require.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = svc.VerifyIDToken(context.Background(), "not-a-token")
	require.ErrorIs(t, err, identity.ErrInvalidToken)

	wrongAud := issuer.IDToken(t, identitytest.Claims{Subject: "uid-1", Audience: "someone-else"})
	_, err = svc.VerifyIDToken(context.Background(), wrongAud)
	require.ErrorIs(t, err, identity.ErrInvalidToken)

	foreign := identitytest.NewTokenIssuer(t, nil).IDToken(t, identitytest.Claims{Subject: "uid-1"})
	_, err = svc.VerifyIDToken(context.Background(), foreign)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestVerifyIDTokenExpired(t *testing.T) {
	svc, issuer, clock := newFixture(t)
	raw := issuer.IDToken(t, identitytest.Claims{Subject: "uid-1", TTL: time.Hour})

	clock.Advance(2 * time.Hour)
	_, err := svc.VerifyIDToken(context.Background(), raw)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestSessionCookieRoundTrip(t *testing.T) {
	svc, issuer, clock := newFixture(t)
	raw := issuer.IDToken(t, identitytest.Claims{Subject: "uid-7", Email: "grace@example.com", Picture: "https://img/g.png"})

	cookie, err := svc.CreateSessionCookie(context.Background(), raw, identity.MaxSessionTTL)
	require.NoError(t, err)

	clock.Advance(13 * 24 * time.Hour)
	id, err := svc.VerifySessionCookie(context.Background(), cookie, true)
	require.NoError(t, err)
	require.Equal(t, "uid-7", id.Subject)
	require.Equal(t, "grace@example.com", id.Email)
	require.Equal(t, "https://img/g.png", id.Picture)

	clock.Advance(2 * 24 * time.Hour)
	_, err = svc.VerifySessionCookie(context.Background(), cookie, true)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestCreateSessionCookieRequiresRecentLogin(t *testing.T) {
	svc, issuer, clock := newFixture(t)
	raw := issuer.IDToken(t, identitytest.Claims{Subject: "uid-1", AuthTime: clock.Now().Add(-10 * time.Minute)})

	_, err := svc.CreateSessionCookie(context.Background(), raw, identity.MaxSessionTTL)
	require.ErrorIs(t, err, identity.ErrStaleLogin)
}

func TestCreateSessionRejectsOutOfRangeTTL(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, err := svc.CreateSessionForIdentity(context.Background(), identity.Identity{Subject: "s"}, time.Minute)
	require.Error(t, err)
	_, err = svc.CreateSessionForIdentity(context.Background(), identity.Identity{Subject: "s"}, 15*24*time.Hour)
	require.Error(t, err)
}

func TestRevokeRefreshTokens(t *testing.T) {
	svc, _, clock := newFixture(t)
	ctx := context.Background()

	cookie, err := svc.CreateSessionForIdentity(ctx, identity.Identity{Subject: identity.LocalSubject("u1")}, identity.MaxSessionTTL)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, svc.RevokeRefreshTokens(ctx, identity.LocalSubject("u1")))

	// Revocation is only consulted when asked for.
	_, err = svc.VerifySessionCookie(ctx, cookie, false)
	require.NoError(t, err)

	_, err = svc.VerifySessionCookie(ctx, cookie, true)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
	require.ErrorIs(t, err, identity.ErrRevoked)

	clock.Advance(time.Second)
	fresh, err := svc.CreateSessionForIdentity(ctx, identity.Identity{Subject: identity.LocalSubject("u1")}, identity.MaxSessionTTL)
	require.NoError(t, err)
	_, err = svc.VerifySessionCookie(ctx, fresh, true)
	require.NoError(t, err)
}

func TestVerifySessionCookieRejectsTampering(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, err := svc.VerifySessionCookie(context.Background(), "", true)
	require.ErrorIs(t, err, identity.ErrUnauthenticated)

	cookie, err := svc.CreateSessionForIdentity(context.Background(), identity.Identity{Subject: "uid"}, time.Hour)
	require.NoError(t, err)
	_, err = svc.VerifySessionCookie(context.Background(), cookie+"x", true)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestLocalSubject(t *testing.T) {
	id, ok := identity.ParseLocalSubject(identity.LocalSubject("abc"))
	require.True(t, ok)
	require.Equal(t, "abc", id)

	_, ok = identity.ParseLocalSubject("firebase-uid")
	require.False(t, ok)
	_, ok = identity.ParseLocalSubject("local:")
	require.False(t, ok)
}
