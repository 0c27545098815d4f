package router

import (
	"errors"

	"liveclass/internal/store"
	"liveclass/pkg/types"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrUnauthorized   = errors.New("not authorized")
	ErrNotRegistered  = errors.New("connection has not registered a user")
	ErrActorMismatch  = errors.New("payload actor does not match connection identity")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrInvalidPayload = errors.New("invalid payload")
)

// errorCode classifies a handler error into the protocol's error code set.
func errorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrClassNotFound),
		errors.Is(err, store.ErrLessonNotFound),
		errors.Is(err, store.ErrHomeworkNotFound),
		errors.Is(err, store.ErrSubmissionNotFound):
		return types.ErrCodeNotFound
	case errors.Is(err, store.ErrDuplicateSubmission):
		return types.ErrCodeConflict
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotRegistered),
		errors.Is(err, ErrActorMismatch):
		return types.ErrCodeUnauthorized
	case errors.Is(err, ErrRateLimited):
		return types.ErrCodeRateLimited
	case errors.Is(err, ErrUnknownEvent),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, types.ErrInvalidRole),
		errors.Is(err, types.ErrInvalidHomeworkType),
		errors.Is(err, types.ErrEmptyName),
		errors.Is(err, types.ErrNoQuestions):
		return types.ErrCodeInvalidPayload
	default:
		return types.ErrCodeInternal
	}
}
