package validator

import (
	"errors"
	"fmt"
	"strings"

	"wayfare/pkg/logger"
	"wayfare/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type TripValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewTripValidator(log *logger.Logger) *TripValidator {
	v := validator.New()

	if err := v.RegisterValidation("itinerary_days", validateItineraryDays); err != nil {
		log.Fatal("Failed to register 'itinerary_days' validator",
			"error", err,
		)
	}

	log.Info("Trip validator initialized successfully")

	return &TripValidator{
		validate: v,
		logger:   log,
	}
}

// validateItineraryDays rejects itineraries with duplicate day numbers.
func validateItineraryDays(fl validator.FieldLevel) bool {
	entries, ok := fl.Field().Interface().([]model.ItineraryEntry)
	if !ok {
		return false
	}

	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		if seen[e.DayNumber] {
			return false
		}
		seen[e.DayNumber] = true
	}
	return true
}

func (v *TripValidator) Validate(trip *model.Trip) error {
	if err := v.validate.Struct(trip); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !trip.StartDate.IsZero() && !trip.EndDate.IsZero() && trip.EndDate.Before(trip.StartDate) {
		return ValidationErrors{
			ValidationError{
				Field:   "EndDate",
				Message: "end_date must not be before start_date",
			},
		}
	}

	return nil
}

func (v *TripValidator) ValidateUpdate(update *model.TripUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.StartDate != nil && update.EndDate != nil {
		if update.EndDate.Before(*update.StartDate) {
			return ValidationErrors{
				ValidationError{
					Field:   "EndDate",
					Message: "end_date must not be before start_date",
				},
			}
		}
	}

	return nil
}

func (v *TripValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
