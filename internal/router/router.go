// Package router is the protocol surface of the classroom server: it decodes
// each inbound event into its typed payload, authorizes the actor, applies
// the store mutation and emits the resulting events to the caller, a class
// room, or a single user.
package router

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"liveclass/internal/grader"
	"liveclass/internal/store"
	"liveclass/internal/ws"
	"liveclass/pkg/types"
)

// Router dispatches the closed set of classroom events. All calls arrive on
// the hub goroutine, so handlers run to completion one at a time; the store
// still locks internally because the HTTP side-channel bypasses the hub.
type Router struct {
	store   *store.Store
	rooms   *ws.Registry
	limiter *RateLimiter
	log     zerolog.Logger
}

func New(st *store.Store, rooms *ws.Registry, log zerolog.Logger) *Router {
	return &Router{
		store:   st,
		rooms:   rooms,
		limiter: NewRateLimiter(),
		log:     log.With().Str("component", "router").Logger(),
	}
}

// Dispatch routes one inbound event. Handler failures never propagate: every
// error becomes an error event on the caller's connection and the process
// moves on.
func (r *Router) Dispatch(conn ws.Conn, env types.Envelope) {
	if env.Event != types.EventPing && conn.Identified() && !r.limiter.Allow(conn.UserID()) {
		r.sendError(conn, env.Event, ErrRateLimited)
		return
	}

	var err error
	switch env.Event {
	case types.EventRegisterUser:
		err = r.handleRegisterUser(conn, env.Data)
	case types.EventTeacherCreateClass:
		err = r.handleCreateClass(conn, env.Data)
	case types.EventCreateLesson:
		err = r.handleCreateLesson(conn, env.Data)
	case types.EventJoinClass:
		err = r.handleJoinClass(conn, env.Data)
	case types.EventTeacherStartLesson:
		err = r.handleStartLesson(conn, env.Data)
	case types.EventTeacherPresentSimulation:
		err = r.handlePresentSimulation(conn, env.Data)
	case types.EventTeacherStopPresentation:
		err = r.handleStopPresentation(conn, env.Data)
	case types.EventNewHomework:
		err = r.handleNewHomework(conn, env.Data)
	case types.EventSubmitHomework:
		err = r.handleSubmitHomework(conn, env.Data)
	case types.EventGradeSubmission:
		err = r.handleGradeSubmission(conn, env.Data)
	case types.EventRequestHelp:
		err = r.handleRequestHelp(conn, env.Data)
	case types.EventRaiseHand:
		err = r.handleHand(conn, env.Data, types.EventHandRaised)
	case types.EventLowerHand:
		err = r.handleHand(conn, env.Data, types.EventHandLowered)
	case types.EventTeacherGiveFloor:
		err = r.handleGiveFloor(conn, env.Data)
	case types.EventChatMessage:
		err = r.handleChatMessage(conn, env.Data)
	case types.EventPinMessage:
		err = r.handleMessageRef(conn, env.Data, types.EventMessagePinned)
	case types.EventDeleteMessage:
		err = r.handleMessageRef(conn, env.Data, types.EventMessageDeleted)
	case types.EventPing:
		r.reply(conn, types.EventPong, nil)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}

	if err != nil {
		r.sendError(conn, env.Event, err)
	}
}

// HandleDisconnect marks the user offline and drops the connection from all
// rooms. Class rosters are untouched; membership survives reconnects.
func (r *Router) HandleDisconnect(conn ws.Conn) {
	if !conn.Identified() {
		return
	}
	userID := conn.UserID()
	r.store.SetUserPresence(userID, false)
	r.rooms.Unregister(conn)
	r.log.Info().Str("user", userID).Msg("user disconnected")
}

func (r *Router) handleRegisterUser(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[registerUserRequest](data)
	if err != nil {
		return err
	}
	u := types.User{ID: req.ID, Email: req.Email, Name: req.Name, Role: req.Role, Avatar: req.Avatar}
	if err := u.Validate(); err != nil {
		return err
	}

	u = r.store.PutUser(u)
	conn.SetIdentity(u.ID, u.Role)
	if err := r.rooms.Register(conn); err != nil {
		return err
	}

	// A returning member rejoins their class room immediately so live
	// broadcasts resume without a fresh join_class.
	if u.ClassCode != "" {
		if class, err := r.store.FindClassByCode(u.ClassCode); err == nil {
			r.rooms.Join(u.ID, class.ID)
		}
	}

	r.log.Info().Str("user", u.ID).Str("role", u.Role).Msg("user registered")
	r.reply(conn, types.EventUserRegistered, u)
	return nil
}

func (r *Router) handleCreateClass(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[createClassRequest](data)
	if err != nil {
		return err
	}
	if err := r.requireTeacher(conn, req.TeacherID); err != nil {
		return err
	}
	if req.Name == "" {
		return fmt.Errorf("%w: class name required", ErrInvalidPayload)
	}

	class := r.store.CreateClass(req.TeacherID, req.Name)
	r.rooms.Join(req.TeacherID, class.ID)
	r.log.Info().Str("class", class.ID).Str("code", class.ClassCode).Msg("class created")
	r.reply(conn, types.EventClassCreated, class)
	return nil
}

func (r *Router) handleCreateLesson(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[createLessonRequest](data)
	if err != nil {
		return err
	}
	if _, err := r.requireClassOwner(conn, req.TeacherID, req.ClassID); err != nil {
		return err
	}
	if req.Title == "" {
		return fmt.Errorf("%w: lesson title required", ErrInvalidPayload)
	}

	lesson := r.store.CreateLesson(types.Lesson{
		Title:        req.Title,
		Description:  req.Description,
		Content:      req.Content,
		TeacherID:    req.TeacherID,
		ClassID:      req.ClassID,
		SimulationID: req.SimulationID,
	})
	r.reply(conn, types.EventLessonCreated, lesson)
	return nil
}

func (r *Router) handleJoinClass(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[joinClassRequest](data)
	if err != nil {
		return err
	}
	if err := r.requireActor(conn, req.StudentID); err != nil {
		return err
	}
	student, err := r.store.GetUser(req.StudentID)
	if err != nil {
		return err
	}
	class, err := r.store.FindClassByCode(req.ClassCode)
	if err != nil {
		return err
	}

	class, err = r.store.AddStudent(class.ID, student.ID)
	if err != nil {
		return err
	}
	r.rooms.Join(student.ID, class.ID)

	r.log.Info().Str("student", student.ID).Str("class", class.ID).Msg("student joined class")
	r.reply(conn, types.EventClassJoined, map[string]any{
		"class":   class,
		"lessons": r.store.LessonsByClass(class.ID),
	})
	r.rooms.Unicast(class.TeacherID, types.EventNewStudentJoined, map[string]any{
		"classId": class.ID,
		"student": student,
	})
	return nil
}

func (r *Router) handleStartLesson(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[startLessonRequest](data)
	if err != nil {
		return err
	}
	if _, err := r.requireClassOwner(conn, req.TeacherID, req.ClassID); err != nil {
		return err
	}

	lesson, err := r.store.StartLesson(req.ClassID, req.LessonID)
	if err != nil {
		return err
	}
	r.log.Info().Str("class", req.ClassID).Str("lesson", lesson.ID).Msg("lesson started")
	r.rooms.Broadcast(req.ClassID, types.EventLessonStarted, lesson)
	return nil
}

func (r *Router) handlePresentSimulation(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[presentSimulationRequest](data)
	if err != nil {
		return err
	}
	if _, err := r.requireClassOwner(conn, req.TeacherID, req.ClassID); err != nil {
		return err
	}

	// Pure relay, no state transition: students mirror whatever parameters
	// the teacher is presenting right now.
	r.rooms.Broadcast(req.ClassID, types.EventSimulationPresented, map[string]any{
		"classId":      req.ClassID,
		"simulationId": req.SimulationID,
		"params":       req.Params,
	})
	return nil
}

func (r *Router) handleStopPresentation(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[stopPresentationRequest](data)
	if err != nil {
		return err
	}
	if _, err := r.requireClassOwner(conn, req.TeacherID, req.ClassID); err != nil {
		return err
	}

	if err := r.store.StopPresentation(req.ClassID); err != nil {
		return err
	}
	r.rooms.Broadcast(req.ClassID, types.EventPresentationStopped, map[string]any{"classId": req.ClassID})
	return nil
}

func (r *Router) handleNewHomework(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[newHomeworkRequest](data)
	if err != nil {
		return err
	}
	if _, err := r.requireClassOwner(conn, req.TeacherID, req.ClassID); err != nil {
		return err
	}

	hw := types.Homework{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Questions:   req.Questions,
		TeacherID:   req.TeacherID,
		ClassID:     req.ClassID,
		DueDate:     req.DueDate,
	}
	if err := hw.Validate(); err != nil {
		return err
	}

	hw = r.store.CreateHomework(hw)
	r.log.Info().Str("homework", hw.ID).Str("class", hw.ClassID).Str("type", hw.Type).Msg("homework published")
	r.rooms.Broadcast(req.ClassID, types.EventNewHomework, hw)
	return nil
}

func (r *Router) handleSubmitHomework(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[submitHomeworkRequest](data)
	if err != nil {
		return err
	}
	if err := r.requireActor(conn, req.StudentID); err != nil {
		return err
	}
	if _, err := r.store.GetUser(req.StudentID); err != nil {
		return err
	}
	hw, err := r.store.GetHomework(req.HomeworkID)
	if err != nil {
		return err
	}

	sub, err := r.store.CreateSubmission(req.HomeworkID, req.StudentID, req.Answers)
	if err != nil {
		return err
	}

	if score, ok := grader.Score(hw, sub); ok {
		sub, err = r.store.ApplyGrade(sub.ID, score, "", "auto")
		if err != nil {
			return err
		}
		r.log.Info().Str("submission", sub.ID).Int("score", score).Msg("submission auto-graded")
	}

	r.reply(conn, types.EventHomeworkSubmitted, sub)
	if class, err := r.store.GetClass(hw.ClassID); err == nil {
		r.rooms.Unicast(class.TeacherID, types.EventNewSubmission, sub)
	}
	return nil
}

func (r *Router) handleGradeSubmission(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[gradeSubmissionRequest](data)
	if err != nil {
		return err
	}
	sub, err := r.store.GetSubmission(req.SubmissionID)
	if err != nil {
		return err
	}
	if sub.HomeworkID != req.HomeworkID {
		return fmt.Errorf("%w: submission %s does not belong to homework %s",
			store.ErrSubmissionNotFound, req.SubmissionID, req.HomeworkID)
	}
	hw, err := r.store.GetHomework(sub.HomeworkID)
	if err != nil {
		return err
	}
	if _, err := r.requireClassOwner(conn, req.TeacherID, hw.ClassID); err != nil {
		return err
	}

	sub, err = r.store.ApplyGrade(req.SubmissionID, req.Score, req.Feedback, req.TeacherID)
	if err != nil {
		return err
	}
	r.log.Info().Str("submission", sub.ID).Str("teacher", req.TeacherID).Int("score", req.Score).Msg("submission graded")
	r.rooms.Unicast(sub.StudentID, types.EventSubmissionGraded, sub)
	return nil
}

func (r *Router) handleRequestHelp(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[requestHelpRequest](data)
	if err != nil {
		return err
	}
	if err := r.requireActor(conn, req.StudentID); err != nil {
		return err
	}
	student, err := r.store.GetUser(req.StudentID)
	if err != nil {
		return err
	}
	class, err := r.store.GetClass(req.ClassID)
	if err != nil {
		return err
	}

	r.rooms.Unicast(class.TeacherID, types.EventHelpRequested, map[string]any{
		"classId":   class.ID,
		"studentId": student.ID,
		"name":      student.Name,
		"message":   req.Message,
	})
	return nil
}

func (r *Router) handleHand(conn ws.Conn, data json.RawMessage, outEvent string) error {
	req, err := decode[handRequest](data)
	if err != nil {
		return err
	}
	if err := r.requireActor(conn, req.StudentID); err != nil {
		return err
	}
	student, err := r.store.GetUser(req.StudentID)
	if err != nil {
		return err
	}
	if _, err := r.store.GetClass(req.ClassID); err != nil {
		return err
	}

	r.rooms.Broadcast(req.ClassID, outEvent, map[string]any{
		"classId":   req.ClassID,
		"studentId": student.ID,
		"name":      student.Name,
	})
	return nil
}

func (r *Router) handleGiveFloor(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[giveFloorRequest](data)
	if err != nil {
		return err
	}
	if _, err := r.requireClassOwner(conn, req.TeacherID, req.ClassID); err != nil {
		return err
	}
	if _, err := r.store.GetUser(req.StudentID); err != nil {
		return err
	}

	r.rooms.Broadcast(req.ClassID, types.EventFloorGranted, map[string]any{
		"classId":   req.ClassID,
		"studentId": req.StudentID,
	})
	return nil
}

func (r *Router) handleChatMessage(conn ws.Conn, data json.RawMessage) error {
	req, err := decode[chatMessageRequest](data)
	if err != nil {
		return err
	}
	if err := r.requireActor(conn, req.UserID); err != nil {
		return err
	}
	user, err := r.store.GetUser(req.UserID)
	if err != nil {
		return err
	}
	if _, err := r.store.GetClass(req.ClassID); err != nil {
		return err
	}
	if req.Text == "" {
		return fmt.Errorf("%w: empty chat message", ErrInvalidPayload)
	}

	// Chat is relay-only; messages are not persisted entities.
	r.rooms.Broadcast(req.ClassID, types.EventChatMessage, map[string]any{
		"id":      store.NewID(),
		"classId": req.ClassID,
		"userId":  user.ID,
		"name":    user.Name,
		"text":    req.Text,
		"sentAt":  time.Now(),
	})
	return nil
}

func (r *Router) handleMessageRef(conn ws.Conn, data json.RawMessage, outEvent string) error {
	req, err := decode[messageRefRequest](data)
	if err != nil {
		return err
	}
	if _, err := r.requireClassOwner(conn, req.TeacherID, req.ClassID); err != nil {
		return err
	}

	r.rooms.Broadcast(req.ClassID, outEvent, map[string]any{
		"classId":   req.ClassID,
		"messageId": req.MessageID,
	})
	return nil
}

// requireActor verifies the payload actor is the user registered on this
// connection, so nobody can act on someone else's behalf.
func (r *Router) requireActor(conn ws.Conn, userID string) error {
	if !conn.Identified() {
		return ErrNotRegistered
	}
	if conn.UserID() != userID {
		return fmt.Errorf("%w: %s", ErrActorMismatch, userID)
	}
	return nil
}

// requireTeacher verifies the actor is a registered teacher.
func (r *Router) requireTeacher(conn ws.Conn, teacherID string) error {
	if err := r.requireActor(conn, teacherID); err != nil {
		return err
	}
	u, err := r.store.GetUser(teacherID)
	if err != nil {
		return err
	}
	if u.Role != types.RoleTeacher {
		return fmt.Errorf("%w: user %s is not a teacher", ErrUnauthorized, teacherID)
	}
	return nil
}

// requireClassOwner applies the uniform teacher-scoped policy: the actor
// must be a teacher and must own the referenced class.
func (r *Router) requireClassOwner(conn ws.Conn, teacherID, classID string) (types.Class, error) {
	if err := r.requireTeacher(conn, teacherID); err != nil {
		return types.Class{}, err
	}
	class, err := r.store.GetClass(classID)
	if err != nil {
		return types.Class{}, err
	}
	if class.TeacherID != teacherID {
		return types.Class{}, fmt.Errorf("%w: class %s is not owned by %s", ErrUnauthorized, classID, teacherID)
	}
	return class, nil
}

func (r *Router) reply(conn ws.Conn, event string, data any) {
	frame := types.ServerEvent{Event: event, Data: data, Timestamp: time.Now()}
	if err := conn.WriteJSON(frame); err != nil {
		r.log.Warn().Err(err).Str("event", event).Msg("reply delivery failed")
	}
}

func (r *Router) sendError(conn ws.Conn, event string, err error) {
	code := errorCode(err)
	r.log.Warn().Err(err).Str("event", event).Str("code", code).Msg("event rejected")
	r.reply(conn, types.EventError, types.ErrorPayload{Code: code, Message: err.Error()})
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}
