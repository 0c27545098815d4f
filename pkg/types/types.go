package types

import (
	"encoding/json"
	"time"
)

// Roles a registered user may hold.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Homework types. Only mcq and input are auto-gradable; interactive and
// coding always require manual grading.
const (
	HomeworkTypeMCQ         = "mcq"
	HomeworkTypeInput       = "input"
	HomeworkTypeInteractive = "interactive"
	HomeworkTypeCoding      = "coding"
)

// User is a connected participant. Users are created on register_user and
// never deleted; connect/disconnect only flips IsOnline and LastSeen.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	ClassCode string    `json:"classCode,omitempty"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Class is a teacher-owned group of students sharing a join code.
// Students holds user IDs only; there is no cascading delete.
type Class struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ClassCode       string    `json:"classCode"`
	TeacherID       string    `json:"teacherId"`
	Students        []string  `json:"students"`
	CreatedAt       time.Time `json:"createdAt"`
	IsLive          bool      `json:"isLive"`
	CurrentLessonID string    `json:"currentLessonId,omitempty"`
}

// Lesson belongs to exactly one class. At most one lesson per class is live
// at a time.
type Lesson struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Content      string    `json:"content,omitempty"`
	TeacherID    string    `json:"teacherId"`
	ClassID      string    `json:"classId"`
	CreatedAt    time.Time `json:"createdAt"`
	IsLive       bool      `json:"isLive"`
	SimulationID string    `json:"simulationId,omitempty"`
}

// Question is one entry in a homework's question set. The populated fields
// depend on the homework type: mcq questions carry Options and CorrectAnswer,
// numeric input questions carry Expected and Tolerance, text input questions
// carry ExpectedText and optionally Pattern.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Points        int      `json:"points"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer *int     `json:"correctAnswer,omitempty"`
	Expected      *float64 `json:"expected,omitempty"`
	Tolerance     *float64 `json:"tolerance,omitempty"`
	ExpectedText  string   `json:"expectedText,omitempty"`
	Pattern       string   `json:"pattern,omitempty"`
}

// Homework is published by a teacher to a class. The question set is a
// tagged union keyed by Type.
type Homework struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type"`
	Questions   []Question `json:"questions"`
	TeacherID   string     `json:"teacherId"`
	ClassID     string     `json:"classId"`
	DueDate     time.Time  `json:"dueDate,omitzero"`
	CreatedAt   time.Time  `json:"createdAt"`
	IsPublished bool       `json:"isPublished"`
}

// Answer is a student's response to one question. Value is left loosely
// typed because its shape depends on the question: an option index for mcq,
// a number for numeric input, a string for text input.
type Answer struct {
	QuestionID string `json:"questionId"`
	Value      any    `json:"answer"`
}

// Submission is created once per (homework, student) pair. Auto-grading runs
// at most once at submission time; manual grading overwrites score and
// feedback, recording the grader.
type Submission struct {
	ID          string     `json:"id"`
	HomeworkID  string     `json:"homeworkId"`
	StudentID   string     `json:"studentId"`
	Answers     []Answer   `json:"answers"`
	SubmittedAt time.Time  `json:"submittedAt"`
	Score       *int       `json:"score,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
	GradedBy    string     `json:"gradedBy,omitempty"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`
	IsGraded    bool       `json:"isGraded"`
}

// Envelope is the wire frame for every inbound client event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the wire frame for every outbound event.
type ServerEvent struct {
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
