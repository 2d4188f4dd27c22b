package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/database/testutil"
	"github.com/feelize/platform/internal/models"
)

type testClock struct{ t time.Time }

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func createUser(t *testing.T, db *gorm.DB, email string, level models.AccessLevel) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email, AccessLevel: level}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createAffiliate(t *testing.T, db *gorm.DB, code string, rate float64) *models.Affiliate {
	t.Helper()
	affiliate := &models.Affiliate{
		Name:           "Affiliate " + code,
		Email:          code + "@partners.example.com",
		ReferralCode:   code,
		CommissionRate: rate,
		Status:         models.AffiliateActive,
	}
	require.NoError(t, db.Create(affiliate).Error)
	return affiliate
}

func actorFor(user *models.User) Actor {
	return Actor{UserID: user.ID, Level: user.AccessLevel}
}

func reloadAffiliate(t *testing.T, db *gorm.DB, id string) models.Affiliate {
	t.Helper()
	var affiliate models.Affiliate
	require.NoError(t, db.Where("id = ?", id).Take(&affiliate).Error)
	return affiliate
}
