package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/response"
)

// ReferralHandler exposes referral listing, manual attribution and lifecycle updates.
type ReferralHandler struct {
	referrals  *services.ReferralService
	affiliates *services.AffiliateService
}

func NewReferralHandler(referrals *services.ReferralService, affiliates *services.AffiliateService) (*ReferralHandler, error) {
	if referrals == nil || affiliates == nil {
		return nil, stdErrors.New("referral handler: services are required")
	}
	return &ReferralHandler{referrals: referrals, affiliates: affiliates}, nil
}

// GET /api/referrals
//
// Admins see every referral; affiliates only their own.
func (h *ReferralHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := requestContext(c)
	opts := services.ListReferralsOptions{
		PageOptions: pageFromQuery(c),
		AffiliateID: c.Query("affiliate_id"),
		Status:      models.ReferralStatus(strings.ToLower(c.Query("status"))),
	}
	if !user.IsAdmin() {
		affiliate, err := h.affiliates.GetByUser(ctx, user.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		opts.AffiliateID = affiliate.ID
	}

	referrals, total, err := h.referrals.List(ctx, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, referrals, total, opts.PageOptions)
}

// GET /api/referrals/:id
func (h *ReferralHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	referral, err := h.referrals.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !user.IsAdmin() && (referral.Affiliate == nil || referral.Affiliate.UserID == nil || *referral.Affiliate.UserID != user.ID) {
		response.Error(c, services.ErrReferralNotFound)
		return
	}
	response.Success(c, http.StatusOK, referral)
}

type createReferralRequest struct {
	ReferralCode  string `json:"referral_code" validate:"required,referralcode"`
	ReferredEmail string `json:"referred_email" validate:"omitempty,email"`
	ProjectID     string `json:"project_id" validate:"omitempty,uuid"`
}

// POST /api/referrals
func (h *ReferralHandler) Create(c *gin.Context) {
	var req createReferralRequest
	if !bindAndValidate(c, &req) {
		return
	}

	referral, err := h.referrals.Attribute(requestContext(c), services.AttributionInput{
		Code:          req.ReferralCode,
		ReferredEmail: req.ReferredEmail,
		ProjectID:     req.ProjectID,
		Source:        services.SourceManual,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if referral == nil {
		response.Error(c, services.ErrAffiliateNotFound.WithMessage("No affiliate uses this referral code"))
		return
	}
	response.Success(c, http.StatusCreated, referral)
}

type updateReferralRequest struct {
	Status           string   `json:"status" validate:"required,oneofci=booked pending converted paid rejected"`
	Notes            *string  `json:"notes" validate:"omitempty,max=2000"`
	CommissionAmount *float64 `json:"commission_amount" validate:"omitempty,gte=0"`
}

// PUT /api/referrals/:id/status
func (h *ReferralHandler) UpdateStatus(c *gin.Context) {
	var req updateReferralRequest
	if !bindAndValidate(c, &req) {
		return
	}
	referral, err := h.referrals.UpdateStatus(requestContext(c), c.Param("id"), services.UpdateReferralInput{
		Status:           models.ReferralStatus(strings.ToLower(req.Status)),
		Notes:            req.Notes,
		CommissionAmount: req.CommissionAmount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, referral)
}
