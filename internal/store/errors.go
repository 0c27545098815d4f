package store

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrClassNotFound       = errors.New("class not found")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrHomeworkNotFound    = errors.New("homework not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrDuplicateSubmission = errors.New("homework already submitted by this student")
)
