package store

import (
	"crypto/rand"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"liveclass/pkg/types"
)

// Store is the single source of truth for all classroom entities. It is an
// explicitly owned object injected into the router and the HTTP API rather
// than module-level state, so each test can construct an isolated instance.
//
// All methods copy entities in and out; callers never share pointers with
// the store. Mutations go through dedicated methods that hold the lock for
// the whole read-modify-write, which keeps every protocol operation atomic
// even though the HTTP side-channel runs on separate goroutines from the hub.
// Entities are never deleted; they accumulate for the life of the process.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*types.User
	classes     map[string]*types.Class
	lessons     map[string]*types.Lesson
	homeworks   map[string]*types.Homework
	submissions map[string]*types.Submission
}

func New() *Store {
	return &Store{
		users:       make(map[string]*types.User),
		classes:     make(map[string]*types.Class),
		lessons:     make(map[string]*types.Lesson),
		homeworks:   make(map[string]*types.Homework),
		submissions: make(map[string]*types.Submission),
	}
}

// NewID returns a fresh entity ID. UUIDs remove the collision risk of
// timestamp-derived IDs under concurrent creation.
func NewID() string {
	return uuid.New().String()
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newClassCode generates a human-shareable DY-XXXXXX join code. The caller
// must hold the lock; the code is re-rolled until it is unused so join codes
// stay unique among known classes.
func (s *Store) newClassCode() string {
	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand never fails on supported platforms
			panic(fmt.Sprintf("class code generation: %v", err))
		}
		for i, b := range buf {
			buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
		}
		code := "DY-" + string(buf)
		if s.findClassByCodeLocked(code) == nil {
			return code
		}
	}
}

// PutUser inserts or updates a user keyed by ID and marks it online.
// A missing ID is filled in. The stored user is returned.
func (s *Store) PutUser(u types.User) types.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = NewID()
	}
	u.IsOnline = true
	u.LastSeen = time.Now()

	if existing, ok := s.users[u.ID]; ok {
		// Re-registration keeps the class membership from the prior session.
		if u.ClassCode == "" {
			u.ClassCode = existing.ClassCode
		}
	}
	s.users[u.ID] = &u
	return u
}

func (s *Store) GetUser(id string) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return *u, nil
}

// SetUserPresence flips the online flag and stamps last-seen. Unknown users
// are ignored; disconnects may race with registration.
func (s *Store) SetUserPresence(id string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.IsOnline = online
		u.LastSeen = time.Now()
	}
}

// SetUserClassCode records which class a user has joined.
func (s *Store) SetUserClassCode(id, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.ClassCode = code
	}
}

// CreateClass creates a class owned by teacherID with a fresh join code.
func (s *Store) CreateClass(teacherID, name string) types.Class {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &types.Class{
		ID:        NewID(),
		Name:      name,
		ClassCode: s.newClassCode(),
		TeacherID: teacherID,
		Students:  []string{},
		CreatedAt: time.Now(),
	}
	s.classes[c.ID] = c
	return *c
}

func (s *Store) GetClass(id string) (types.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.classes[id]
	if !ok {
		return types.Class{}, fmt.Errorf("%w: %s", ErrClassNotFound, id)
	}
	return copyClass(c), nil
}

func (s *Store) FindClassByCode(code string) (types.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c := s.findClassByCodeLocked(code); c != nil {
		return copyClass(c), nil
	}
	return types.Class{}, fmt.Errorf("%w: code %s", ErrClassNotFound, code)
}

func (s *Store) findClassByCodeLocked(code string) *types.Class {
	for _, c := range s.classes {
		if c.ClassCode == code {
			return c
		}
	}
	return nil
}

// AddStudent appends a student to a class roster. Adding the same student
// twice is a no-op, so rejoining after a reconnect is safe.
func (s *Store) AddStudent(classID, studentID string) (types.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.classes[classID]
	if !ok {
		return types.Class{}, fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}
	if !slices.Contains(c.Students, studentID) {
		c.Students = append(c.Students, studentID)
	}
	if u, ok := s.users[studentID]; ok {
		u.ClassCode = c.ClassCode
	}
	return copyClass(c), nil
}

// CreateLesson creates a lesson belonging to one class.
func (s *Store) CreateLesson(l types.Lesson) types.Lesson {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.ID = NewID()
	l.CreatedAt = time.Now()
	s.lessons[l.ID] = &l
	return l
}

func (s *Store) GetLesson(id string) (types.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lessons[id]
	if !ok {
		return types.Lesson{}, fmt.Errorf("%w: %s", ErrLessonNotFound, id)
	}
	return *l, nil
}

func (s *Store) LessonsByClass(classID string) []types.Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Lesson
	for _, l := range s.lessons {
		if l.ClassID == classID {
			out = append(out, *l)
		}
	}
	return out
}

// StartLesson marks a lesson live and records it as the class's current
// lesson. Only one lesson per class is live at a time; a previously live
// lesson is stopped first.
func (s *Store) StartLesson(classID, lessonID string) (types.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.classes[classID]
	if !ok {
		return types.Lesson{}, fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}
	l, ok := s.lessons[lessonID]
	if !ok || l.ClassID != classID {
		return types.Lesson{}, fmt.Errorf("%w: %s", ErrLessonNotFound, lessonID)
	}

	if c.CurrentLessonID != "" && c.CurrentLessonID != lessonID {
		if prev, ok := s.lessons[c.CurrentLessonID]; ok {
			prev.IsLive = false
		}
	}

	c.IsLive = true
	c.CurrentLessonID = lessonID
	l.IsLive = true
	return *l, nil
}

// StopPresentation returns the class to the idle state.
func (s *Store) StopPresentation(classID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.classes[classID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}
	if c.CurrentLessonID != "" {
		if l, ok := s.lessons[c.CurrentLessonID]; ok {
			l.IsLive = false
		}
	}
	c.IsLive = false
	c.CurrentLessonID = ""
	return nil
}

// CreateHomework stores a homework as published.
func (s *Store) CreateHomework(h types.Homework) types.Homework {
	s.mu.Lock()
	defer s.mu.Unlock()

	h.ID = NewID()
	h.CreatedAt = time.Now()
	h.IsPublished = true
	s.homeworks[h.ID] = &h
	return h
}

func (s *Store) GetHomework(id string) (types.Homework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.homeworks[id]
	if !ok {
		return types.Homework{}, fmt.Errorf("%w: %s", ErrHomeworkNotFound, id)
	}
	return copyHomework(h), nil
}

func (s *Store) HomeworksByClass(classID string) []types.Homework {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Homework
	for _, h := range s.homeworks {
		if h.ClassID == classID {
			out = append(out, copyHomework(h))
		}
	}
	return out
}

// CreateSubmission records a student's answers. A second submission for the
// same homework by the same student is rejected rather than duplicated.
func (s *Store) CreateSubmission(homeworkID, studentID string, answers []types.Answer) (types.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.homeworks[homeworkID]; !ok {
		return types.Submission{}, fmt.Errorf("%w: %s", ErrHomeworkNotFound, homeworkID)
	}
	for _, sub := range s.submissions {
		if sub.HomeworkID == homeworkID && sub.StudentID == studentID {
			return types.Submission{}, fmt.Errorf("%w: homework %s", ErrDuplicateSubmission, homeworkID)
		}
	}

	sub := &types.Submission{
		ID:          NewID(),
		HomeworkID:  homeworkID,
		StudentID:   studentID,
		Answers:     slices.Clone(answers),
		SubmittedAt: time.Now(),
	}
	s.submissions[sub.ID] = sub
	return copySubmission(sub), nil
}

func (s *Store) GetSubmission(id string) (types.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return types.Submission{}, fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
	}
	return copySubmission(sub), nil
}

func (s *Store) SubmissionsByHomework(homeworkID string) []types.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Submission
	for _, sub := range s.submissions {
		if sub.HomeworkID == homeworkID {
			out = append(out, copySubmission(sub))
		}
	}
	return out
}

// ApplyGrade sets score and feedback on a submission. Regrading overwrites
// the previous grade; the last writer wins and the grader is recorded.
func (s *Store) ApplyGrade(submissionID string, score int, feedback, gradedBy string) (types.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[submissionID]
	if !ok {
		return types.Submission{}, fmt.Errorf("%w: %s", ErrSubmissionNotFound, submissionID)
	}
	now := time.Now()
	sub.Score = &score
	sub.Feedback = feedback
	sub.GradedBy = gradedBy
	sub.GradedAt = &now
	sub.IsGraded = true
	return copySubmission(sub), nil
}

// Counts reports entity totals, used by the health endpoint.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"users":       len(s.users),
		"classes":     len(s.classes),
		"lessons":     len(s.lessons),
		"homeworks":   len(s.homeworks),
		"submissions": len(s.submissions),
	}
}

func copyClass(c *types.Class) types.Class {
	out := *c
	out.Students = slices.Clone(c.Students)
	return out
}

func copyHomework(h *types.Homework) types.Homework {
	out := *h
	out.Questions = slices.Clone(h.Questions)
	return out
}

func copySubmission(sub *types.Submission) types.Submission {
	out := *sub
	out.Answers = slices.Clone(sub.Answers)
	if sub.Score != nil {
		v := *sub.Score
		out.Score = &v
	}
	if sub.GradedAt != nil {
		t := *sub.GradedAt
		out.GradedAt = &t
	}
	return out
}
