package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stdErrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/metrics"
	"github.com/feelize/platform/pkg/response"
)

const (
	EventBookingCreated     = "BOOKING_CREATED"
	EventBookingRescheduled = "BOOKING_RESCHEDULED"
	EventBookingCancelled   = "BOOKING_CANCELLED"

	// BookingSignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
	BookingSignatureHeader = "X-Cal-Signature-256"

	maxWebhookBody = 1 << 20
)

var errInvalidSignature = errors.New("INVALID_SIGNATURE", "Invalid webhook signature", http.StatusUnauthorized)

// MeetingHandler receives booking webhooks and exposes recorded meetings to admins.
type MeetingHandler struct {
	meetings *services.MeetingService
	secret   []byte
	log      *zap.Logger
}

// NewMeetingHandler constructs a MeetingHandler. An empty secret accepts unsigned webhooks.
func NewMeetingHandler(meetings *services.MeetingService, secret string) (*MeetingHandler, error) {
	if meetings == nil {
		return nil, stdErrors.New("meeting handler: service is required")
	}
	return &MeetingHandler{
		meetings: meetings,
		secret:   []byte(strings.TrimSpace(secret)),
		log:      logger.WithModule("meetings"),
	}, nil
}

type bookingWebhook struct {
	TriggerEvent string         `json:"triggerEvent"`
	Payload      bookingPayload `json:"payload"`
}

type bookingPayload struct {
	UID       string            `json:"uid"`
	Title     string            `json:"title"`
	StartTime *time.Time        `json:"startTime"`
	EndTime   *time.Time        `json:"endTime"`
	Status    string            `json:"status"`
	Attendees []bookingAttendee `json:"attendees"`
	Metadata  bookingMetadata   `json:"metadata"`
}

type bookingAttendee struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type bookingMetadata struct {
	ReferralCode string `json:"referral_code"`
}

// POST /meetings
func (h *MeetingHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, errors.NewBadRequest("unable to read request body"))
		return
	}
	if !h.validSignature(c.GetHeader(BookingSignatureHeader), body) {
		metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		response.Error(c, errInvalidSignature)
		return
	}

	var event bookingWebhook
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&event); err != nil {
		response.Error(c, errors.NewBadRequest("invalid JSON payload"))
		return
	}

	trigger := strings.ToUpper(strings.TrimSpace(event.TriggerEvent))
	ctx := requestContext(c)

	switch trigger {
	case EventBookingCreated, EventBookingRescheduled:
		metrics.WebhookEvents.WithLabelValues(trigger).Inc()
		outcome, err := h.meetings.UpsertBooking(ctx, event.Payload.input())
		if err != nil {
			response.Error(c, err)
			return
		}
		h.log.Info("booking recorded",
			zap.String("event", trigger),
			zap.String("uid", outcome.Meeting.ExternalID),
			zap.Bool("created", outcome.Created),
			zap.Bool("referred", outcome.Referral != nil),
		)
		response.Success(c, http.StatusOK, outcome)

	case EventBookingCancelled:
		metrics.WebhookEvents.WithLabelValues(trigger).Inc()
		meeting, err := h.meetings.CancelBooking(ctx, event.Payload.UID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, meeting)

	default:
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		response.SuccessWithMessage(c, http.StatusOK, "ignored", nil)
	}
}

func (h *MeetingHandler) validSignature(signature string, body []byte) bool {
	if len(h.secret) == 0 {
		return true
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (p bookingPayload) input() services.BookingInput {
	attendees := make([]models.MeetingAttendee, 0, len(p.Attendees))
	for _, a := range p.Attendees {
		attendees = append(attendees, models.MeetingAttendee{Email: a.Email, Name: a.Name})
	}
	return services.BookingInput{
		UID:          p.UID,
		Title:        p.Title,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		Status:       p.Status,
		Attendees:    attendees,
		ReferralCode: p.Metadata.ReferralCode,
	}
}

// GET /api/meetings
func (h *MeetingHandler) List(c *gin.Context) {
	page := pageFromQuery(c)
	meetings, total, err := h.meetings.List(requestContext(c), services.ListMeetingsOptions{
		PageOptions: page,
		Status:      strings.ToLower(c.Query("status")),
		AffiliateID: c.Query("affiliate_id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, meetings, total, page)
}

// GET /api/meetings/:uid
func (h *MeetingHandler) Get(c *gin.Context) {
	meeting, err := h.meetings.GetByUID(requestContext(c), c.Param("uid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, meeting)
}
