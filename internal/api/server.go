// Package api is the HTTP side-channel: a small read/write surface over the
// same in-memory store the socket protocol mutates, plus the WebSocket
// upgrade endpoint and a health check.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"liveclass/internal/config"
	"liveclass/internal/store"
	"liveclass/internal/ws"
	"liveclass/pkg/types"
)

type Server struct {
	store     *store.Store
	rooms     *ws.Registry
	wsHandler http.HandlerFunc
	log       zerolog.Logger
	startTime time.Time
}

func NewServer(st *store.Store, rooms *ws.Registry, wsHandler http.HandlerFunc, log zerolog.Logger) *Server {
	return &Server{
		store:     st,
		rooms:     rooms,
		wsHandler: wsHandler,
		log:       log.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
}

// Routes assembles the chi router with the standard middleware stack and
// CORS policy.
func (s *Server) Routes(corsCfg config.CORSConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   corsCfg.AllowedMethods,
		AllowedHeaders:   corsCfg.AllowedHeaders,
		AllowCredentials: corsCfg.AllowCredentials,
		MaxAge:           corsCfg.MaxAge,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.wsHandler)
	r.Route("/api", func(r chi.Router) {
		r.Get("/classes/{code}", s.handleGetClass)
		r.Post("/homeworks/{homeworkID}/grade", s.handleGradeSubmission)
	})

	return r
}

type classResponse struct {
	Class     types.Class      `json:"class"`
	Students  []types.User     `json:"students"`
	Lessons   []types.Lesson   `json:"lessons"`
	Homeworks []types.Homework `json:"homeworks"`
}

func (s *Server) handleGetClass(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	class, err := s.store.FindClassByCode(code)
	if err != nil {
		s.error(w, http.StatusNotFound, "class not found")
		return
	}

	students := make([]types.User, 0, len(class.Students))
	for _, id := range class.Students {
		if u, err := s.store.GetUser(id); err == nil {
			students = append(students, u)
		}
	}

	s.json(w, http.StatusOK, classResponse{
		Class:     class,
		Students:  students,
		Lessons:   s.store.LessonsByClass(class.ID),
		Homeworks: s.store.HomeworksByClass(class.ID),
	})
}

type gradeRequest struct {
	SubmissionID string `json:"submissionId"`
	Score        int    `json:"score"`
	Feedback     string `json:"feedback"`
	TeacherID    string `json:"teacherId"`
}

func (s *Server) handleGradeSubmission(w http.ResponseWriter, r *http.Request) {
	homeworkID := chi.URLParam(r, "homeworkID")

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sub, err := s.store.GetSubmission(req.SubmissionID)
	if err != nil || sub.HomeworkID != homeworkID {
		s.error(w, http.StatusNotFound, "submission not found for this homework")
		return
	}

	sub, err = s.store.ApplyGrade(req.SubmissionID, req.Score, req.Feedback, req.TeacherID)
	if err != nil {
		if errors.Is(err, store.ErrSubmissionNotFound) {
			s.error(w, http.StatusNotFound, "submission not found")
			return
		}
		s.error(w, http.StatusInternalServerError, "grading failed")
		return
	}

	// The student learns about the grade on their private room, same as a
	// grade_submission socket event.
	s.rooms.Unicast(sub.StudentID, types.EventSubmissionGraded, sub)

	s.json(w, http.StatusOK, sub)
}

type healthResponse struct {
	Status   string         `json:"status"`
	Uptime   string         `json:"uptime"`
	Online   int            `json:"online"`
	Entities map[string]int `json:"entities"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		Uptime:   time.Since(s.startTime).Truncate(time.Second).String(),
		Online:   s.rooms.OnlineCount(),
		Entities: s.store.Counts(),
	})
}

func (s *Server) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encoding failed")
	}
}

func (s *Server) error(w http.ResponseWriter, status int, message string) {
	s.json(w, status, map[string]string{"error": message})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("duration", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("http request")
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
