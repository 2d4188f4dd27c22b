package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feelize/platform/internal/models"
)

func newMeetingService(t *testing.T) (*MeetingService, *ReferralService, func() *models.Affiliate) {
	t.Helper()
	db := openDB(t)
	referrals, err := NewReferralService(db, nil)
	require.NoError(t, err)
	meetings, err := NewMeetingService(db, referrals)
	require.NoError(t, err)
	return meetings, referrals, func() *models.Affiliate { return createAffiliate(t, db, "SAVE10", 0.1) }
}

func TestUpsertBookingCreatesMeetingAndReferral(t *testing.T) {
	meetings, referrals, seed := newMeetingService(t)
	affiliate := seed()
	start := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)

	outcome, err := meetings.UpsertBooking(context.Background(), BookingInput{
		UID:          "bk_1",
		Title:        "Discovery call",
		StartTime:    &start,
		Status:       "ACCEPTED",
		Attendees:    []models.MeetingAttendee{{Email: "Lead@Example.com", Name: "Lead"}},
		ReferralCode: "save10",
	})
	require.NoError(t, err)
	require.True(t, outcome.Created)
	require.Equal(t, "accepted", outcome.Meeting.Status)
	require.Equal(t, "lead@example.com", outcome.Meeting.AttendeeEmail)
	require.NotNil(t, outcome.Referral)
	require.Equal(t, models.ReferralBooked, outcome.Referral.Status)
	require.NotNil(t, outcome.Meeting.AffiliateID)
	require.Equal(t, affiliate.ID, *outcome.Meeting.AffiliateID)

	_, total, err := referrals.List(context.Background(), ListReferralsOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestUpsertBookingDefaultsStatusAndIsIdempotent(t *testing.T) {
	meetings, referrals, seed := newMeetingService(t)
	seed()
	ctx := context.Background()

	input := BookingInput{UID: "bk_2", Attendees: []models.MeetingAttendee{{Email: "x@example.com"}}, ReferralCode: "SAVE10"}
	first, err := meetings.UpsertBooking(ctx, input)
	require.NoError(t, err)
	require.Equal(t, "booked", first.Meeting.Status)

	later := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	input.StartTime = &later
	input.Title = "Rescheduled"
	second, err := meetings.UpsertBooking(ctx, input)
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Meeting.ID, second.Meeting.ID)
	require.Equal(t, "Rescheduled", second.Meeting.Title)
	require.Equal(t, first.Referral.ID, second.Referral.ID)

	_, total, err := referrals.List(ctx, ListReferralsOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestUpsertBookingWithoutMatchingCode(t *testing.T) {
	meetings, _, _ := newMeetingService(t)

	outcome, err := meetings.UpsertBooking(context.Background(), BookingInput{UID: "bk_3", ReferralCode: "NOBODY"})
	require.NoError(t, err)
	require.Nil(t, outcome.Referral)
	require.Nil(t, outcome.Meeting.AffiliateID)
}

func TestUpsertBookingRequiresUID(t *testing.T) {
	meetings, _, _ := newMeetingService(t)
	_, err := meetings.UpsertBooking(context.Background(), BookingInput{})
	require.Error(t, err)
}

func TestCancelBooking(t *testing.T) {
	meetings, _, _ := newMeetingService(t)
	ctx := context.Background()

	_, err := meetings.CancelBooking(ctx, "unknown")
	require.ErrorIs(t, err, ErrMeetingNotFound)

	_, err = meetings.UpsertBooking(ctx, BookingInput{UID: "bk_4"})
	require.NoError(t, err)

	cancelled, err := meetings.CancelBooking(ctx, "bk_4")
	require.NoError(t, err)
	require.Equal(t, MeetingCancelled, cancelled.Status)

	list, total, err := meetings.List(ctx, ListMeetingsOptions{Status: "CANCELLED"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "bk_4", list[0].ExternalID)
}

func TestUpsertBookingSkipsMalformedReferralCode(t *testing.T) {
	meetings, referrals, seed := newMeetingService(t)
	seed()
	ctx := context.Background()

	for uid, code := range map[string]string{
		"bk_long":  "SAVE10SAVE10SAVE10",
		"bk_chars": "save-10!",
	} {
		outcome, err := meetings.UpsertBooking(ctx, BookingInput{
			UID:          uid,
			Attendees:    []models.MeetingAttendee{{Email: "lead@example.com"}},
			ReferralCode: code,
		})
		require.NoError(t, err, uid)
		require.True(t, outcome.Created, uid)
		require.Empty(t, outcome.Meeting.ReferralCode, uid)
		require.Nil(t, outcome.Referral, uid)
		require.Nil(t, outcome.Meeting.AffiliateID, uid)
	}

	_, total, err := referrals.List(ctx, ListReferralsOptions{})
	require.NoError(t, err)
	require.Zero(t, total)
}
