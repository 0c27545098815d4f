package router

import (
	"encoding/json"
	"regexp"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"liveclass/internal/store"
	"liveclass/internal/ws"
	"liveclass/pkg/types"
)

// testConn is an in-process ws.Conn capturing everything the router emits.
type testConn struct {
	mu     sync.Mutex
	userID string
	role   string
	frames []types.ServerEvent
}

func (c *testConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev, ok := v.(types.ServerEvent); ok {
		c.frames = append(c.frames, ev)
	}
	return nil
}

func (c *testConn) Close() error { return nil }

func (c *testConn) SetIdentity(userID, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.role = role
}

func (c *testConn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *testConn) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *testConn) Identified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID != ""
}

func (c *testConn) last(t *testing.T) types.ServerEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		t.Fatal("no frames received")
	}
	return c.frames[len(c.frames)-1]
}

func (c *testConn) find(event string) (types.ServerEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, fr := range c.frames {
		if fr.Event == event {
			return fr, true
		}
	}
	return types.ServerEvent{}, false
}

func (c *testConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type fixture struct {
	store  *store.Store
	rooms  *ws.Registry
	router *Router
}

func newFixture() *fixture {
	st := store.New()
	rooms := ws.NewRegistry(zerolog.Nop())
	return &fixture{store: st, rooms: rooms, router: New(st, rooms, zerolog.Nop())}
}

func mustData(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func (f *fixture) dispatch(t *testing.T, conn ws.Conn, event string, payload any) {
	t.Helper()
	f.router.Dispatch(conn, types.Envelope{Event: event, Data: mustData(t, payload)})
}

// register runs register_user on a fresh connection and returns it.
func (f *fixture) register(t *testing.T, id, name, role string) *testConn {
	t.Helper()
	conn := &testConn{}
	f.dispatch(t, conn, types.EventRegisterUser, registerUserRequest{ID: id, Name: name, Role: role})
	fr := conn.last(t)
	if fr.Event != types.EventUserRegistered {
		t.Fatalf("registration failed: %+v", fr)
	}
	conn.reset()
	return conn
}

func errorCodeOf(t *testing.T, fr types.ServerEvent) string {
	t.Helper()
	if fr.Event != types.EventError {
		t.Fatalf("expected error event, got %s", fr.Event)
	}
	payload, ok := fr.Data.(types.ErrorPayload)
	if !ok {
		t.Fatalf("unexpected error payload type %T", fr.Data)
	}
	return payload.Code
}

var classCodePattern = regexp.MustCompile(`^DY-[A-Z0-9]{6}$`)

func TestCreateClass_ReturnsShareableCode(t *testing.T) {
	f := newFixture()
	teacher := f.register(t, "t1", "Ms Frizzle", types.RoleTeacher)

	f.dispatch(t, teacher, types.EventTeacherCreateClass, createClassRequest{TeacherID: "t1", Name: "Physics"})

	fr := teacher.last(t)
	if fr.Event != types.EventClassCreated {
		t.Fatalf("expected class_created, got %s", fr.Event)
	}
	class, ok := fr.Data.(types.Class)
	if !ok {
		t.Fatalf("unexpected payload type %T", fr.Data)
	}
	if !classCodePattern.MatchString(class.ClassCode) {
		t.Errorf("class code %q does not match DY-XXXXXX", class.ClassCode)
	}
	if class.TeacherID != "t1" {
		t.Errorf("class owner = %q", class.TeacherID)
	}
}

func TestCreateClass_StudentRejected(t *testing.T) {
	f := newFixture()
	student := f.register(t, "s1", "Student", types.RoleStudent)

	f.dispatch(t, student, types.EventTeacherCreateClass, createClassRequest{TeacherID: "s1", Name: "My Class"})

	if code := errorCodeOf(t, student.last(t)); code != types.ErrCodeUnauthorized {
		t.Errorf("expected unauthorized, got %s", code)
	}
}

func TestJoinClass_SeededClass(t *testing.T) {
	f := newFixture()
	f.store.Seed()
	teacher := f.register(t, "teacher-demo", "Demo Teacher", types.RoleTeacher)
	student := f.register(t, "s1", "Ada", types.RoleStudent)

	f.dispatch(t, student, types.EventJoinClass, joinClassRequest{StudentID: "s1", ClassCode: "DY-TEST1"})

	fr := student.last(t)
	if fr.Event != types.EventClassJoined {
		t.Fatalf("expected class_joined, got %+v", fr)
	}

	class, err := f.store.FindClassByCode("DY-TEST1")
	if err != nil {
		t.Fatal(err)
	}
	if len(class.Students) != 1 || class.Students[0] != "s1" {
		t.Errorf("roster after join = %v", class.Students)
	}

	if _, ok := teacher.find(types.EventNewStudentJoined); !ok {
		t.Error("teacher did not receive new_student_joined")
	}
}

func TestJoinClass_BadCodeNoMutation(t *testing.T) {
	f := newFixture()
	f.store.Seed()
	student := f.register(t, "s1", "Ada", types.RoleStudent)

	f.dispatch(t, student, types.EventJoinClass, joinClassRequest{StudentID: "s1", ClassCode: "DY-ZZZZZZ"})

	if code := errorCodeOf(t, student.last(t)); code != types.ErrCodeNotFound {
		t.Errorf("expected not_found, got %s", code)
	}
	class, _ := f.store.FindClassByCode("DY-TEST1")
	if len(class.Students) != 0 {
		t.Error("failed join must not mutate any class")
	}
}

func TestStartLesson_BroadcastsToRoom(t *testing.T) {
	f := newFixture()
	teacher := f.register(t, "t1", "Teacher", types.RoleTeacher)
	f.dispatch(t, teacher, types.EventTeacherCreateClass, createClassRequest{TeacherID: "t1", Name: "Physics"})
	class := teacher.last(t).Data.(types.Class)
	teacher.reset()

	f.dispatch(t, teacher, types.EventCreateLesson, createLessonRequest{
		TeacherID: "t1", ClassID: class.ID, Title: "Gravity", SimulationID: "phet-gravity",
	})
	lesson := teacher.last(t).Data.(types.Lesson)
	teacher.reset()

	student := f.register(t, "s1", "Ada", types.RoleStudent)
	f.dispatch(t, student, types.EventJoinClass, joinClassRequest{StudentID: "s1", ClassCode: class.ClassCode})
	student.reset()

	f.dispatch(t, teacher, types.EventTeacherStartLesson, startLessonRequest{
		TeacherID: "t1", ClassID: class.ID, LessonID: lesson.ID,
	})

	if _, ok := student.find(types.EventLessonStarted); !ok {
		t.Error("student in class room did not receive lesson_started")
	}
	got, _ := f.store.GetClass(class.ID)
	if !got.IsLive || got.CurrentLessonID != lesson.ID {
		t.Errorf("class state after start: live=%v current=%s", got.IsLive, got.CurrentLessonID)
	}
}

func TestStartLesson_NonOwnerNeverMutates(t *testing.T) {
	f := newFixture()
	owner := f.register(t, "t1", "Owner", types.RoleTeacher)
	f.dispatch(t, owner, types.EventTeacherCreateClass, createClassRequest{TeacherID: "t1", Name: "Physics"})
	class := owner.last(t).Data.(types.Class)
	owner.reset()

	f.dispatch(t, owner, types.EventCreateLesson, createLessonRequest{TeacherID: "t1", ClassID: class.ID, Title: "Gravity"})
	lesson := owner.last(t).Data.(types.Lesson)

	student := f.register(t, "s1", "Ada", types.RoleStudent)
	f.dispatch(t, student, types.EventJoinClass, joinClassRequest{StudentID: "s1", ClassCode: class.ClassCode})
	student.reset()

	intruder := f.register(t, "t2", "Other Teacher", types.RoleTeacher)
	f.dispatch(t, intruder, types.EventTeacherStartLesson, startLessonRequest{
		TeacherID: "t2", ClassID: class.ID, LessonID: lesson.ID,
	})

	if code := errorCodeOf(t, intruder.last(t)); code != types.ErrCodeUnauthorized {
		t.Errorf("expected unauthorized, got %s", code)
	}
	got, _ := f.store.GetClass(class.ID)
	if got.IsLive {
		t.Error("non-owner start_lesson mutated class state")
	}
	if _, ok := student.find(types.EventLessonStarted); ok {
		t.Error("non-owner start_lesson broadcast lesson_started")
	}
}

// publishHomework is shared setup for the submission scenarios: a class, a
// joined student, and one published homework.
func publishHomework(t *testing.T, f *fixture, hwType string, questions []types.Question) (*testConn, *testConn, types.Class, types.Homework) {
	t.Helper()
	teacher := f.register(t, "t1", "Teacher", types.RoleTeacher)
	f.dispatch(t, teacher, types.EventTeacherCreateClass, createClassRequest{TeacherID: "t1", Name: "Physics"})
	class := teacher.last(t).Data.(types.Class)
	teacher.reset()

	student := f.register(t, "s1", "Ada", types.RoleStudent)
	f.dispatch(t, student, types.EventJoinClass, joinClassRequest{StudentID: "s1", ClassCode: class.ClassCode})
	student.reset()

	f.dispatch(t, teacher, types.EventNewHomework, newHomeworkRequest{
		TeacherID: "t1", ClassID: class.ID, Title: "Quiz", Type: hwType, Questions: questions,
	})
	fr, ok := student.find(types.EventNewHomework)
	if !ok {
		t.Fatal("student did not receive new_homework broadcast")
	}
	hw := fr.Data.(types.Homework)
	if !hw.IsPublished {
		t.Fatal("homework must be published on creation")
	}
	teacher.reset()
	student.reset()
	return teacher, student, class, hw
}

func TestSubmitHomework_MCQAutoGraded(t *testing.T) {
	correct := 2
	testCases := []struct {
		name     string
		answer   any
		expected int
	}{
		{"correct answer scores 100", 2, 100},
		{"wrong answer scores 0", 1, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			teacher, student, _, hw := publishHomework(t, f, types.HomeworkTypeMCQ, []types.Question{
				{ID: "q1", Points: 100, Options: []string{"a", "b", "c"}, CorrectAnswer: &correct},
			})

			f.dispatch(t, student, types.EventSubmitHomework, submitHomeworkRequest{
				StudentID: "s1", HomeworkID: hw.ID,
				Answers: []types.Answer{{QuestionID: "q1", Value: tc.answer}},
			})

			fr, ok := student.find(types.EventHomeworkSubmitted)
			if !ok {
				t.Fatal("student did not receive homework_submitted")
			}
			sub := fr.Data.(types.Submission)
			if !sub.IsGraded || sub.Score == nil {
				t.Fatalf("mcq submission must be auto-graded: %+v", sub)
			}
			if *sub.Score != tc.expected {
				t.Errorf("expected score %d, got %d", tc.expected, *sub.Score)
			}
			if sub.GradedBy != "auto" {
				t.Errorf("auto grade must record grader, got %q", sub.GradedBy)
			}
			if _, ok := teacher.find(types.EventNewSubmission); !ok {
				t.Error("teacher did not receive new_submission")
			}
		})
	}
}

func TestSubmitHomework_DuplicateRejected(t *testing.T) {
	correct := 0
	f := newFixture()
	_, student, _, hw := publishHomework(t, f, types.HomeworkTypeMCQ, []types.Question{
		{ID: "q1", Points: 100, CorrectAnswer: &correct},
	})

	req := submitHomeworkRequest{
		StudentID: "s1", HomeworkID: hw.ID,
		Answers: []types.Answer{{QuestionID: "q1", Value: 0}},
	}
	f.dispatch(t, student, types.EventSubmitHomework, req)
	student.reset()
	f.dispatch(t, student, types.EventSubmitHomework, req)

	if code := errorCodeOf(t, student.last(t)); code != types.ErrCodeConflict {
		t.Errorf("expected conflict on resubmission, got %s", code)
	}
	if n := len(f.store.SubmissionsByHomework(hw.ID)); n != 1 {
		t.Errorf("expected a single submission record, got %d", n)
	}
}

func TestGradeSubmission_ManualOnlyToStudent(t *testing.T) {
	f := newFixture()
	teacher, student, _, hw := publishHomework(t, f, types.HomeworkTypeInteractive, []types.Question{
		{ID: "q1", Points: 100},
	})

	// A second student watches the room; grading must not reach them.
	bystander := f.register(t, "s2", "Grace", types.RoleStudent)
	class, _ := f.store.GetClass(hw.ClassID)
	f.dispatch(t, bystander, types.EventJoinClass, joinClassRequest{StudentID: "s2", ClassCode: class.ClassCode})
	bystander.reset()

	f.dispatch(t, student, types.EventSubmitHomework, submitHomeworkRequest{
		StudentID: "s1", HomeworkID: hw.ID,
		Answers: []types.Answer{{QuestionID: "q1", Value: "diagram.png"}},
	})
	fr, _ := student.find(types.EventHomeworkSubmitted)
	sub := fr.Data.(types.Submission)
	if sub.IsGraded {
		t.Fatal("interactive homework must not be auto-graded")
	}
	student.reset()

	f.dispatch(t, teacher, types.EventGradeSubmission, gradeSubmissionRequest{
		TeacherID: "t1", HomeworkID: hw.ID, SubmissionID: sub.ID, Score: 90, Feedback: "nice work",
	})

	graded, ok := student.find(types.EventSubmissionGraded)
	if !ok {
		t.Fatal("student did not receive submission_graded")
	}
	result := graded.Data.(types.Submission)
	if !result.IsGraded || result.Score == nil || *result.Score != 90 || result.Feedback != "nice work" {
		t.Errorf("unexpected graded submission: %+v", result)
	}
	if _, ok := bystander.find(types.EventSubmissionGraded); ok {
		t.Error("submission_graded leaked to another student")
	}
}

func TestGradeSubmission_MismatchedHomework(t *testing.T) {
	f := newFixture()
	teacher, student, _, hw := publishHomework(t, f, types.HomeworkTypeInteractive, []types.Question{
		{ID: "q1", Points: 100},
	})

	f.dispatch(t, student, types.EventSubmitHomework, submitHomeworkRequest{
		StudentID: "s1", HomeworkID: hw.ID,
		Answers: []types.Answer{{QuestionID: "q1", Value: "x"}},
	})
	fr, _ := student.find(types.EventHomeworkSubmitted)
	sub := fr.Data.(types.Submission)
	teacher.reset()

	f.dispatch(t, teacher, types.EventGradeSubmission, gradeSubmissionRequest{
		TeacherID: "t1", HomeworkID: "other-homework", SubmissionID: sub.ID, Score: 50,
	})

	if code := errorCodeOf(t, teacher.last(t)); code != types.ErrCodeNotFound {
		t.Errorf("expected not_found for mismatched homework, got %s", code)
	}
	got, _ := f.store.GetSubmission(sub.ID)
	if got.IsGraded {
		t.Error("mismatched grade request must not mutate the submission")
	}
}

func TestChatAndSignals_RelayToRoom(t *testing.T) {
	f := newFixture()
	teacher := f.register(t, "t1", "Teacher", types.RoleTeacher)
	f.dispatch(t, teacher, types.EventTeacherCreateClass, createClassRequest{TeacherID: "t1", Name: "Physics"})
	class := teacher.last(t).Data.(types.Class)
	teacher.reset()

	student := f.register(t, "s1", "Ada", types.RoleStudent)
	f.dispatch(t, student, types.EventJoinClass, joinClassRequest{StudentID: "s1", ClassCode: class.ClassCode})
	student.reset()

	f.dispatch(t, student, types.EventRaiseHand, handRequest{StudentID: "s1", ClassID: class.ID})
	if _, ok := teacher.find(types.EventHandRaised); !ok {
		t.Error("teacher did not see hand_raised")
	}

	f.dispatch(t, student, types.EventChatMessage, chatMessageRequest{UserID: "s1", ClassID: class.ID, Text: "hello"})
	if _, ok := teacher.find(types.EventChatMessage); !ok {
		t.Error("chat message was not relayed to the room")
	}

	f.dispatch(t, student, types.EventRequestHelp, requestHelpRequest{StudentID: "s1", ClassID: class.ID, Message: "stuck"})
	if _, ok := teacher.find(types.EventHelpRequested); !ok {
		t.Error("teacher did not receive help_requested")
	}

	teacher.reset()
	student.reset()
	f.dispatch(t, teacher, types.EventTeacherGiveFloor, giveFloorRequest{TeacherID: "t1", ClassID: class.ID, StudentID: "s1"})
	if _, ok := student.find(types.EventFloorGranted); !ok {
		t.Error("student did not receive floor_granted")
	}
}

func TestDispatch_UnknownEvent(t *testing.T) {
	f := newFixture()
	conn := f.register(t, "u1", "User", types.RoleStudent)

	f.router.Dispatch(conn, types.Envelope{Event: "no_such_event", Data: mustData(t, map[string]any{})})

	if code := errorCodeOf(t, conn.last(t)); code != types.ErrCodeInvalidPayload {
		t.Errorf("expected invalid_payload, got %s", code)
	}
}

func TestDispatch_Ping(t *testing.T) {
	f := newFixture()
	conn := &testConn{}

	f.router.Dispatch(conn, types.Envelope{Event: types.EventPing})

	if fr := conn.last(t); fr.Event != types.EventPong {
		t.Errorf("expected pong, got %s", fr.Event)
	}
}

func TestDispatch_ActorSpoofingRejected(t *testing.T) {
	f := newFixture()
	f.store.Seed()
	f.register(t, "s2", "Mallory", types.RoleStudent) // victim exists
	mallory := f.register(t, "s1", "Mallory", types.RoleStudent)

	// s1's connection claims to act as s2.
	f.dispatch(t, mallory, types.EventJoinClass, joinClassRequest{StudentID: "s2", ClassCode: "DY-TEST1"})

	if code := errorCodeOf(t, mallory.last(t)); code != types.ErrCodeUnauthorized {
		t.Errorf("expected unauthorized for spoofed actor, got %s", code)
	}
}

func TestHandleDisconnect_MarksOffline(t *testing.T) {
	f := newFixture()
	conn := f.register(t, "u1", "User", types.RoleStudent)

	u, _ := f.store.GetUser("u1")
	if !u.IsOnline {
		t.Fatal("registered user must be online")
	}

	f.router.HandleDisconnect(conn)

	u, _ = f.store.GetUser("u1")
	if u.IsOnline {
		t.Error("disconnected user must be offline")
	}
}
