package services

import (
	"fmt"

	"github.com/feelize/platform/internal/models"
)

// transitionTable lists the statuses reachable from each status. Statuses absent from the
// table are terminal.
type transitionTable[S ~string] map[S][]S

func (t transitionTable[S]) allows(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (t transitionTable[S]) known(status S) bool {
	if _, ok := t[status]; ok {
		return true
	}
	for _, nexts := range t {
		for _, next := range nexts {
			if next == status {
				return true
			}
		}
	}
	return false
}

func (t transitionTable[S]) check(from, to S) error {
	if !t.known(to) {
		return ErrInvalidTransition.WithMessage(fmt.Sprintf("Unknown status %q", to))
	}
	if !t.allows(from, to) {
		return ErrInvalidTransition.WithMessage(fmt.Sprintf("Cannot move from %s to %s", from, to))
	}
	return nil
}

var referralTransitions = transitionTable[models.ReferralStatus]{
	models.ReferralBooked:    {models.ReferralPending, models.ReferralConverted, models.ReferralRejected},
	models.ReferralPending:   {models.ReferralConverted, models.ReferralRejected},
	models.ReferralConverted: {models.ReferralPaid, models.ReferralRejected},
}

var projectTransitions = transitionTable[models.ProjectStatus]{
	models.ProjectInquiry:    {models.ProjectPlanning, models.ProjectCancelled},
	models.ProjectPlanning:   {models.ProjectInProgress, models.ProjectCancelled},
	models.ProjectInProgress: {models.ProjectReview, models.ProjectOnHold, models.ProjectCancelled},
	models.ProjectOnHold:     {models.ProjectInProgress, models.ProjectCancelled},
	models.ProjectReview:     {models.ProjectInProgress, models.ProjectCompleted},
}

var affiliateTransitions = transitionTable[models.AffiliateStatus]{
	models.AffiliatePending:   {models.AffiliateActive},
	models.AffiliateActive:    {models.AffiliateSuspended},
	models.AffiliateSuspended: {models.AffiliateActive},
}
