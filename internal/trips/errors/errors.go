package errors

import "errors"

var (
	ErrNotFound = errors.New("trip not found")

	ErrInvalidID = errors.New("invalid trip ID format")

	ErrConversationLinked = errors.New("trip already has a linked conversation")

	ErrStatusChanged = errors.New("trip status changed since it was read")

	ErrAlreadyMember = errors.New("user is already a member of the trip")

	ErrTripFull = errors.New("trip has reached its participant limit")
)
