package types

// Inbound event names, the full protocol surface accepted from clients.
const (
	EventRegisterUser             = "register_user"
	EventTeacherCreateClass       = "teacher_create_class"
	EventCreateLesson             = "create_lesson"
	EventJoinClass                = "join_class"
	EventTeacherStartLesson       = "teacher_start_lesson"
	EventTeacherPresentSimulation = "teacher_present_simulation"
	EventTeacherStopPresentation  = "teacher_stop_presentation"
	EventNewHomework              = "new_homework"
	EventSubmitHomework           = "submit_homework"
	EventGradeSubmission          = "grade_submission"
	EventRequestHelp              = "request_help"
	EventRaiseHand                = "raise_hand"
	EventLowerHand                = "lower_hand"
	EventTeacherGiveFloor         = "teacher_give_floor"
	EventChatMessage              = "chat_message"
	EventPinMessage               = "pin_message"
	EventDeleteMessage            = "delete_message"
	EventPing                     = "ping"
)

// Outbound event names emitted to callers, rooms, or single users.
const (
	EventError               = "error"
	EventPong                = "pong"
	EventUserRegistered      = "user_registered"
	EventClassCreated        = "class_created"
	EventLessonCreated       = "lesson_created"
	EventClassJoined         = "class_joined"
	EventNewStudentJoined    = "new_student_joined"
	EventLessonStarted       = "lesson_started"
	EventSimulationPresented = "simulation_presented"
	EventPresentationStopped = "presentation_stopped"
	EventHomeworkSubmitted   = "homework_submitted"
	EventNewSubmission       = "new_submission"
	EventSubmissionGraded    = "submission_graded"
	EventHelpRequested       = "help_requested"
	EventHandRaised          = "hand_raised"
	EventHandLowered         = "hand_lowered"
	EventFloorGranted        = "floor_granted"
	EventMessagePinned       = "message_pinned"
	EventMessageDeleted      = "message_deleted"
)

// Error codes carried on the error event alongside the human-readable
// message, so clients can branch without parsing text.
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal"
)

// ErrorPayload is the data of every error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
