package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/response"
)

// AffiliateHandler exposes affiliate signup, self-service and admin endpoints.
type AffiliateHandler struct {
	affiliates *services.AffiliateService
	referrals  *services.ReferralService
}

func NewAffiliateHandler(affiliates *services.AffiliateService, referrals *services.ReferralService) (*AffiliateHandler, error) {
	if affiliates == nil || referrals == nil {
		return nil, stdErrors.New("affiliate handler: services are required")
	}
	return &AffiliateHandler{affiliates: affiliates, referrals: referrals}, nil
}

type createAffiliateRequest struct {
	Name           string         `json:"name" validate:"omitempty,max=120"`
	Email          string         `json:"email" validate:"omitempty,email"`
	ReferralCode   string         `json:"referral_code" validate:"omitempty,referralcode"`
	CommissionRate *float64       `json:"commission_rate" validate:"omitempty,gte=0,lte=1"`
	PaymentDetails map[string]any `json:"payment_details"`
}

// POST /api/affiliates
func (h *AffiliateHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req createAffiliateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.CommissionRate != nil && !user.IsAdmin() {
		response.Error(c, errors.ErrForbidden.WithMessage("Only admins can set a commission rate"))
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = user.Name
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = user.Email
	}

	affiliate, err := h.affiliates.Create(requestContext(c), services.CreateAffiliateInput{
		UserID:         user.ID,
		Name:           name,
		Email:          email,
		ReferralCode:   req.ReferralCode,
		CommissionRate: req.CommissionRate,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, affiliate)
}

// GET /api/affiliates
func (h *AffiliateHandler) List(c *gin.Context) {
	page := pageFromQuery(c)
	affiliates, total, err := h.affiliates.List(requestContext(c), services.ListAffiliatesOptions{
		PageOptions: page,
		Status:      models.AffiliateStatus(strings.ToLower(c.Query("status"))),
		Query:       c.Query("q"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, affiliates, total, page)
}

// GET /api/affiliates/me
func (h *AffiliateHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	affiliate, err := h.affiliates.GetByUser(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, affiliate)
}

// GET /api/affiliates/check-code/:code
func (h *AffiliateHandler) CheckCode(c *gin.Context) {
	code := c.Param("code")
	available, err := h.affiliates.CheckCode(requestContext(c), code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"code":      strings.ToUpper(strings.TrimSpace(code)),
		"available": available,
	})
}

// GET /api/affiliates/:id
func (h *AffiliateHandler) Get(c *gin.Context) {
	affiliate, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, affiliate)
}

type updateAffiliateRequest struct {
	Name           *string        `json:"name" validate:"omitempty,min=1,max=120"`
	CommissionRate *float64       `json:"commission_rate" validate:"omitempty,gte=0,lte=1"`
	PaymentDetails map[string]any `json:"payment_details"`
}

// PUT /api/affiliates/:id
func (h *AffiliateHandler) Update(c *gin.Context) {
	affiliate, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	var req updateAffiliateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if user, _ := currentUser(c); req.CommissionRate != nil && !user.IsAdmin() {
		response.Error(c, errors.ErrForbidden.WithMessage("Only admins can change the commission rate"))
		return
	}

	updated, err := h.affiliates.Update(requestContext(c), affiliate.ID, services.UpdateAffiliateInput{
		Name:           req.Name,
		CommissionRate: req.CommissionRate,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

type affiliateStatusRequest struct {
	Status string `json:"status" validate:"required,oneofci=pending active suspended"`
}

// PUT /api/affiliates/:id/status
func (h *AffiliateHandler) UpdateStatus(c *gin.Context) {
	var req affiliateStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	affiliate, err := h.affiliates.UpdateStatus(requestContext(c), c.Param("id"), models.AffiliateStatus(strings.ToLower(req.Status)))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, affiliate)
}

// GET /api/affiliates/:id/stats
func (h *AffiliateHandler) Stats(c *gin.Context) {
	affiliate, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	stats, err := h.affiliates.Stats(requestContext(c), affiliate.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GET /api/affiliates/:id/referrals
func (h *AffiliateHandler) Referrals(c *gin.Context) {
	affiliate, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	page := pageFromQuery(c)
	referrals, total, err := h.referrals.List(requestContext(c), services.ListReferralsOptions{
		PageOptions: page,
		AffiliateID: affiliate.ID,
		Status:      models.ReferralStatus(strings.ToLower(c.Query("status"))),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, referrals, total, page)
}

// loadAuthorized loads the :id affiliate when the caller is an admin or the affiliate itself.
func (h *AffiliateHandler) loadAuthorized(c *gin.Context) (*models.Affiliate, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	affiliate, err := h.affiliates.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !user.IsAdmin() && (affiliate.UserID == nil || *affiliate.UserID != user.ID) {
		// Hide foreign affiliates entirely.
		response.Error(c, services.ErrAffiliateNotFound)
		return nil, false
	}
	return affiliate, true
}
