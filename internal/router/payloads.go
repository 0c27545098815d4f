package router

import (
	"time"

	"liveclass/pkg/types"
)

// Request payloads, one concrete struct per inbound event. The envelope's
// event name selects the struct, giving the protocol a closed tagged union
// instead of free-form maps.

type registerUserRequest struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

type createClassRequest struct {
	TeacherID string `json:"teacherId"`
	Name      string `json:"name"`
}

type createLessonRequest struct {
	TeacherID    string `json:"teacherId"`
	ClassID      string `json:"classId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Content      string `json:"content"`
	SimulationID string `json:"simulationId"`
}

type joinClassRequest struct {
	StudentID string `json:"studentId"`
	ClassCode string `json:"classCode"`
}

type startLessonRequest struct {
	TeacherID string `json:"teacherId"`
	ClassID   string `json:"classId"`
	LessonID  string `json:"lessonId"`
}

type presentSimulationRequest struct {
	TeacherID    string         `json:"teacherId"`
	ClassID      string         `json:"classId"`
	SimulationID string         `json:"simulationId"`
	Params       map[string]any `json:"params"`
}

type stopPresentationRequest struct {
	TeacherID string `json:"teacherId"`
	ClassID   string `json:"classId"`
}

type newHomeworkRequest struct {
	TeacherID   string           `json:"teacherId"`
	ClassID     string           `json:"classId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	Questions   []types.Question `json:"questions"`
	DueDate     time.Time        `json:"dueDate"`
}

type submitHomeworkRequest struct {
	StudentID  string         `json:"studentId"`
	HomeworkID string         `json:"homeworkId"`
	Answers    []types.Answer `json:"answers"`
}

type gradeSubmissionRequest struct {
	TeacherID    string `json:"teacherId"`
	HomeworkID   string `json:"homeworkId"`
	SubmissionID string `json:"submissionId"`
	Score        int    `json:"score"`
	Feedback     string `json:"feedback"`
}

type requestHelpRequest struct {
	StudentID string `json:"studentId"`
	ClassID   string `json:"classId"`
	Message   string `json:"message"`
}

type handRequest struct {
	StudentID string `json:"studentId"`
	ClassID   string `json:"classId"`
}

type giveFloorRequest struct {
	TeacherID string `json:"teacherId"`
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
}

type chatMessageRequest struct {
	UserID  string `json:"userId"`
	ClassID string `json:"classId"`
	Text    string `json:"text"`
}

type messageRefRequest struct {
	TeacherID string `json:"teacherId"`
	ClassID   string `json:"classId"`
	MessageID string `json:"messageId"`
}
