package validator

import (
	"fmt"

	"wayfare/pkg/model"
)

// PublishReason identifies why a draft failed the publish eligibility check.
type PublishReason string

const (
	ReasonAlreadyPublished        PublishReason = "ALREADY_PUBLISHED"
	ReasonTitleMissing            PublishReason = "TITLE_MISSING"
	ReasonDescriptionMissing      PublishReason = "DESCRIPTION_MISSING"
	ReasonDestinationMissing      PublishReason = "DESTINATION_MISSING"
	ReasonStartDateMissing        PublishReason = "START_DATE_MISSING"
	ReasonEndDateMissing          PublishReason = "END_DATE_MISSING"
	ReasonInvalidDateRange        PublishReason = "INVALID_DATE_RANGE"
	ReasonBudgetMissing           PublishReason = "ESTIMATED_BUDGET_MISSING"
	ReasonInvalidBudget           PublishReason = "INVALID_ESTIMATED_BUDGET"
	ReasonMaxParticipantsMissing  PublishReason = "MAX_PARTICIPANTS_MISSING"
	ReasonInvalidMaxParticipants  PublishReason = "INVALID_MAX_PARTICIPANTS"
	ReasonJoinPolicyMissing       PublishReason = "JOIN_POLICY_MISSING"
	ReasonItineraryMissing        PublishReason = "ITINERARY_MISSING"
)

// PublishIneligibleError carries the first failing reason. Checks run in a
// fixed order and short-circuit, so a trip missing several fields reports
// only the most fundamental one.
type PublishIneligibleError struct {
	Reason PublishReason
}

func (e *PublishIneligibleError) Error() string {
	return fmt.Sprintf("trip is not eligible for publishing: %s", e.Reason)
}

// CheckPublishEligibility verifies that a draft has accumulated everything a
// published trip must show. It never mutates the trip; the caller commits
// the transition after the check passes.
func CheckPublishEligibility(trip *model.Trip) error {
	if trip.Status != model.TripStatusDraft {
		return &PublishIneligibleError{Reason: ReasonAlreadyPublished}
	}
	if trip.Title == "" {
		return &PublishIneligibleError{Reason: ReasonTitleMissing}
	}
	if trip.Description == "" {
		return &PublishIneligibleError{Reason: ReasonDescriptionMissing}
	}
	if trip.Destination == "" {
		return &PublishIneligibleError{Reason: ReasonDestinationMissing}
	}
	if trip.StartDate.IsZero() {
		return &PublishIneligibleError{Reason: ReasonStartDateMissing}
	}
	if trip.EndDate.IsZero() {
		return &PublishIneligibleError{Reason: ReasonEndDateMissing}
	}
	if trip.EndDate.Before(trip.StartDate) {
		return &PublishIneligibleError{Reason: ReasonInvalidDateRange}
	}
	if trip.EstimatedBudget == nil {
		return &PublishIneligibleError{Reason: ReasonBudgetMissing}
	}
	if *trip.EstimatedBudget <= 0 {
		return &PublishIneligibleError{Reason: ReasonInvalidBudget}
	}
	if trip.MaxParticipants == nil {
		return &PublishIneligibleError{Reason: ReasonMaxParticipantsMissing}
	}
	if *trip.MaxParticipants <= 0 {
		return &PublishIneligibleError{Reason: ReasonInvalidMaxParticipants}
	}
	if trip.JoinPolicy == "" {
		return &PublishIneligibleError{Reason: ReasonJoinPolicyMissing}
	}
	if len(trip.Itinerary) == 0 {
		return &PublishIneligibleError{Reason: ReasonItineraryMissing}
	}
	return nil
}
