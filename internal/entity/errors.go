package entity

import "errors"

var (
	// Event errors
	ErrEventNotFound    = errors.New("event not found")
	ErrEventInactive    = errors.New("event is not active")
	ErrSignupClosed     = errors.New("signup is closed for this event")
	ErrInvalidTimeRange = errors.New("start time must be before end time")
	ErrVenueNotFound    = errors.New("venue not found")

	// Lineup errors
	ErrSlotNotFound      = errors.New("lineup slot not found")
	ErrDuplicateSlot     = errors.New("only one slot per user per event allowed")
	ErrSlotTaken         = errors.New("slot number is already taken")
	ErrInvalidSlotNumber = errors.New("invalid slot number")
	ErrNameRequired      = errors.New("a name is required to sign up")
	ErrEmptyReorder      = errors.New("reorder batch is empty")
	ErrReorderFailed     = errors.New("failed to reorder lineup")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrHostNotFound = errors.New("event host not found")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// Access errors
	ErrIdentityRequired = errors.New("caller identity is required")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalid     = errors.New("token is invalid")
	ErrNotHost          = errors.New("only the event host can perform this action")
	ErrForbidden        = errors.New("forbidden operation")

	ErrInvalidInput = errors.New("invalid input")
)

// ErrorClass groups errors by how callers must react to them.
type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassValidation
	ClassConflict
	ClassNotFound
	ClassAuthorization
	ClassUnauthenticated
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassConflict:
		return "conflict"
	case ClassNotFound:
		return "not_found"
	case ClassAuthorization:
		return "authorization"
	case ClassUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

var errorClasses = []struct {
	err   error
	class ErrorClass
}{
	{ErrInvalidTimeRange, ClassValidation},
	{ErrInvalidSlotNumber, ClassValidation},
	{ErrNameRequired, ClassValidation},
	{ErrEmptyReorder, ClassValidation},
	{ErrInvalidInput, ClassValidation},

	{ErrDuplicateSlot, ClassConflict},
	{ErrSlotTaken, ClassConflict},
	{ErrSignupClosed, ClassConflict},
	{ErrEventInactive, ClassConflict},

	{ErrEventNotFound, ClassNotFound},
	{ErrVenueNotFound, ClassNotFound},
	{ErrSlotNotFound, ClassNotFound},
	{ErrUserNotFound, ClassNotFound},
	{ErrHostNotFound, ClassNotFound},
	{ErrNotificationNotFound, ClassNotFound},

	{ErrNotHost, ClassAuthorization},
	{ErrForbidden, ClassAuthorization},

	{ErrIdentityRequired, ClassUnauthenticated},
	{ErrUnauthorized, ClassUnauthenticated},
	{ErrTokenExpired, ClassUnauthenticated},
	{ErrTokenInvalid, ClassUnauthenticated},
}

// ClassOf reports the class of the first known sentinel found in err's chain.
// Anything unrecognised, including ErrReorderFailed, is internal.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ClassInternal
	}
	for _, ec := range errorClasses {
		if errors.Is(err, ec.err) {
			return ec.class
		}
	}
	return ClassInternal
}
