package services

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feelize/platform/internal/models"
)

func TestAffiliateCreateWithCustomCode(t *testing.T) {
	db := openDB(t)
	svc, err := NewAffiliateService(db)
	require.NoError(t, err)

	user := createUser(t, db, "maria@example.com", models.AccessClient)

	affiliate, err := svc.Create(context.Background(), CreateAffiliateInput{
		UserID:         user.ID,
		Name:           "Maria",
		Email:          "Maria@Example.com",
		ReferralCode:   "save10",
		PaymentDetails: map[string]any{"method": "paypal", "account": "maria@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, "SAVE10", affiliate.ReferralCode)
	require.True(t, affiliate.CustomCode)
	require.Equal(t, models.AffiliatePending, affiliate.Status)
	require.InDelta(t, 0.10, affiliate.CommissionRate, 1e-9)

	var details map[string]string
	require.NoError(t, json.Unmarshal(affiliate.PaymentDetails, &details))
	require.Equal(t, "paypal", details["method"])

	var promoted models.User
	require.NoError(t, db.Where("id = ?", user.ID).Take(&promoted).Error)
	require.Equal(t, models.AccessAffiliate, promoted.AccessLevel)
}

func TestAffiliateCreateRejectsDuplicateCodeInAnyCase(t *testing.T) {
	svc, err := NewAffiliateService(openDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, CreateAffiliateInput{Name: "A", Email: "a@example.com", ReferralCode: "ABC123"})
	require.NoError(t, err)

	for _, code := range []string{"ABC123", "abc123", "AbC123"} {
		_, err = svc.Create(ctx, CreateAffiliateInput{Name: "B", Email: "b@example.com", ReferralCode: code})
		require.ErrorIs(t, err, ErrDuplicateCode, code)
	}
}

func TestAffiliateCreateValidatesCodeShape(t *testing.T) {
	svc, err := NewAffiliateService(openDB(t))
	require.NoError(t, err)

	for _, code := range []string{"AB1", "THIRTEENCHARS", "SAVE-10", "ÉCOLE1"} {
		_, err = svc.Create(context.Background(), CreateAffiliateInput{Name: "A", Email: "a@example.com", ReferralCode: code})
		require.ErrorIs(t, err, ErrInvalidReferralCode, code)
	}
}

func TestAffiliateCreateRejectsDuplicateEmail(t *testing.T) {
	svc, err := NewAffiliateService(openDB(t))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateAffiliateInput{Name: "A", Email: "same@example.com"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateAffiliateInput{Name: "A", Email: "SAME@example.com"})
	require.ErrorIs(t, err, ErrDuplicateAffiliate)
}

func TestAffiliateCreateGeneratesCode(t *testing.T) {
	svc, err := NewAffiliateService(openDB(t))
	require.NoError(t, err)

	affiliate, err := svc.Create(context.Background(), CreateAffiliateInput{Name: "John", Email: "john.doe-smith@example.com"})
	require.NoError(t, err)
	require.False(t, affiliate.CustomCode)
	require.Regexp(t, regexp.MustCompile(`^JOHNDOES[A-Z2-9]{4}$`), affiliate.ReferralCode)
}

func TestGenerateReferralCode(t *testing.T) {
	code, err := GenerateReferralCode("x@example.com")
	require.NoError(t, err)
	require.Regexp(t, `^X[A-Z2-9]{4}$`, code)

	code, err = GenerateReferralCode("@example.com")
	require.NoError(t, err)
	require.Len(t, code, 4)
}

func TestAffiliateCheckCode(t *testing.T) {
	db := openDB(t)
	svc, err := NewAffiliateService(db)
	require.NoError(t, err)
	createAffiliate(t, db, "TAKEN1", 0.1)

	available, err := svc.CheckCode(context.Background(), "taken1")
	require.NoError(t, err)
	require.False(t, available)

	available, err = svc.CheckCode(context.Background(), "FREE22")
	require.NoError(t, err)
	require.True(t, available)

	_, err = svc.CheckCode(context.Background(), "x")
	require.ErrorIs(t, err, ErrInvalidReferralCode)
}

func TestAffiliateStatusTransitions(t *testing.T) {
	svc, err := NewAffiliateService(openDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	affiliate, err := svc.Create(ctx, CreateAffiliateInput{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, affiliate.ID, models.AffiliateSuspended)
	require.ErrorIs(t, err, ErrInvalidTransition)

	updated, err := svc.UpdateStatus(ctx, affiliate.ID, models.AffiliateActive)
	require.NoError(t, err)
	require.Equal(t, models.AffiliateActive, updated.Status)

	updated, err = svc.UpdateStatus(ctx, affiliate.ID, models.AffiliateSuspended)
	require.NoError(t, err)
	require.Equal(t, models.AffiliateSuspended, updated.Status)

	_, err = svc.UpdateStatus(ctx, affiliate.ID, models.AffiliateActive)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "missing", models.AffiliateActive)
	require.ErrorIs(t, err, ErrAffiliateNotFound)
}

func TestAffiliateUpdate(t *testing.T) {
	db := openDB(t)
	svc, err := NewAffiliateService(db)
	require.NoError(t, err)
	affiliate := createAffiliate(t, db, "UPD111", 0.1)

	bad := 1.5
	_, err = svc.Update(context.Background(), affiliate.ID, UpdateAffiliateInput{CommissionRate: &bad})
	require.Error(t, err)

	rate := 0.2
	name := "  Renamed "
	updated, err := svc.Update(context.Background(), affiliate.ID, UpdateAffiliateInput{CommissionRate: &rate, Name: &name})
	require.NoError(t, err)
	require.InDelta(t, 0.2, updated.CommissionRate, 1e-9)
	require.Equal(t, "Renamed", updated.Name)
}

func TestAffiliateListAndStats(t *testing.T) {
	db := openDB(t)
	svc, err := NewAffiliateService(db)
	require.NoError(t, err)
	referrals, err := NewReferralService(db, nil)
	require.NoError(t, err)

	affiliate := createAffiliate(t, db, "STATS1", 0.1)
	pending := &models.Affiliate{Name: "P", Email: "p@example.com", ReferralCode: "PEND01", Status: models.AffiliatePending}
	require.NoError(t, db.Create(pending).Error)

	ctx := context.Background()
	for _, meeting := range []string{"m1", "m2"} {
		_, err := referrals.Attribute(ctx, AttributionInput{Code: "stats1", MeetingID: meeting, Source: SourceMeeting})
		require.NoError(t, err)
	}

	list, total, err := svc.List(ctx, ListAffiliatesOptions{Status: models.AffiliateActive})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, affiliate.ID, list[0].ID)

	stats, err := svc.Stats(ctx, affiliate.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalReferrals)
	require.EqualValues(t, 2, stats.BookedReferrals)
	require.Zero(t, stats.ConversionRate)
}
