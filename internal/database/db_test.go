package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feelize/platform/internal/database"
	"github.com/feelize/platform/internal/database/testutil"
	"github.com/feelize/platform/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(database.Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestPingInMemory(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.NoError(t, database.Ping(context.Background(), db))
}

func TestSeedPromotesAdmins(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	existing := models.User{Email: "ops@feelize.com"}
	require.NoError(t, db.Create(&existing).Error)

	require.NoError(t, database.SeedData(db, database.SeedOptions{
		AdminEmails: []string{" OPS@feelize.com ", "founder@feelize.com", ""},
	}))
	// Idempotent on a second boot.
	require.NoError(t, database.SeedData(db, database.SeedOptions{
		AdminEmails: []string{"founder@feelize.com"},
	}))

	var users []models.User
	require.NoError(t, db.Order("email").Find(&users).Error)
	require.Len(t, users, 2)
	for _, u := range users {
		require.Equal(t, models.AccessAdmin, u.AccessLevel, u.Email)
	}
}

func TestReferralUniquePerAffiliateMeeting(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	affiliate := models.Affiliate{Name: "A", Email: "a@example.com", ReferralCode: "SAVE10"}
	require.NoError(t, db.Create(&affiliate).Error)

	meetingID := "6f1c4b0e-8f55-4d0e-9d1f-3a0c2b1e9a11"
	first := models.Referral{AffiliateID: affiliate.ID, MeetingID: &meetingID, Status: models.ReferralBooked}
	require.NoError(t, db.Create(&first).Error)

	dup := models.Referral{AffiliateID: affiliate.ID, MeetingID: &meetingID, Status: models.ReferralBooked}
	require.Error(t, db.Create(&dup).Error)

	// Rows without a meeting or project never collide.
	require.NoError(t, db.Create(&models.Referral{AffiliateID: affiliate.ID, Status: models.ReferralPending}).Error)
	require.NoError(t, db.Create(&models.Referral{AffiliateID: affiliate.ID, Status: models.ReferralPending}).Error)
}
