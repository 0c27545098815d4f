package store

import (
	"slices"
	"time"

	"liveclass/pkg/types"
)

// Snapshot is a point-in-time copy of every entity map, used by the
// persistence layer on shutdown and restored on startup.
type Snapshot struct {
	Users       []types.User       `json:"users"`
	Classes     []types.Class      `json:"classes"`
	Lessons     []types.Lesson     `json:"lessons"`
	Homeworks   []types.Homework   `json:"homeworks"`
	Submissions []types.Submission `json:"submissions"`
}

// Export copies the full store contents.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{}
	for _, u := range s.users {
		snap.Users = append(snap.Users, *u)
	}
	for _, c := range s.classes {
		snap.Classes = append(snap.Classes, copyClass(c))
	}
	for _, l := range s.lessons {
		snap.Lessons = append(snap.Lessons, *l)
	}
	for _, h := range s.homeworks {
		snap.Homeworks = append(snap.Homeworks, copyHomework(h))
	}
	for _, sub := range s.submissions {
		snap.Submissions = append(snap.Submissions, copySubmission(sub))
	}
	return snap
}

// Import replaces the store contents with a snapshot. Users are restored
// offline; presence is a property of live connections, not of the snapshot.
func (s *Store) Import(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]*types.User, len(snap.Users))
	for _, u := range snap.Users {
		u.IsOnline = false
		s.users[u.ID] = &u
	}
	s.classes = make(map[string]*types.Class, len(snap.Classes))
	for _, c := range snap.Classes {
		c.Students = slices.Clone(c.Students)
		s.classes[c.ID] = &c
	}
	s.lessons = make(map[string]*types.Lesson, len(snap.Lessons))
	for _, l := range snap.Lessons {
		s.lessons[l.ID] = &l
	}
	s.homeworks = make(map[string]*types.Homework, len(snap.Homeworks))
	for _, h := range snap.Homeworks {
		h.Questions = slices.Clone(h.Questions)
		s.homeworks[h.ID] = &h
	}
	s.submissions = make(map[string]*types.Submission, len(snap.Submissions))
	for _, sub := range snap.Submissions {
		sub.Answers = slices.Clone(sub.Answers)
		s.submissions[sub.ID] = &sub
	}
}

// Empty reports whether the store holds no entities at all.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users) == 0 && len(s.classes) == 0 && len(s.lessons) == 0 &&
		len(s.homeworks) == 0 && len(s.submissions) == 0
}

// Seed installs the demo fixtures a fresh process starts from: one teacher
// and one class with the well-known DY-TEST1 join code.
func (s *Store) Seed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	teacher := &types.User{
		ID:       "teacher-demo",
		Email:    "teacher@example.com",
		Name:     "Demo Teacher",
		Role:     types.RoleTeacher,
		LastSeen: time.Now(),
	}
	s.users[teacher.ID] = teacher

	class := &types.Class{
		ID:        "class-demo",
		Name:      "Physics 101",
		ClassCode: "DY-TEST1",
		TeacherID: teacher.ID,
		Students:  []string{},
		CreatedAt: time.Now(),
	}
	s.classes[class.ID] = class
}
