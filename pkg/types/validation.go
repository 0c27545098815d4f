package types

import (
	"errors"
	"regexp"
)

var (
	ErrInvalidRole         = errors.New("role must be teacher or student")
	ErrInvalidHomeworkType = errors.New("invalid homework type")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrNoQuestions         = errors.New("homework must contain at least one question")
)

// Class join codes are DY- followed by six upper-case alphanumerics.
var classCodePattern = regexp.MustCompile(`^DY-[A-Z0-9]{6}$`)

func IsValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}

func IsValidHomeworkType(t string) bool {
	switch t {
	case HomeworkTypeMCQ, HomeworkTypeInput, HomeworkTypeInteractive, HomeworkTypeCoding:
		return true
	}
	return false
}

func IsValidClassCode(code string) bool {
	return classCodePattern.MatchString(code)
}

// Validate checks the fields a homework needs before it can be published.
func (h *Homework) Validate() error {
	if h.Title == "" {
		return ErrEmptyName
	}
	if !IsValidHomeworkType(h.Type) {
		return ErrInvalidHomeworkType
	}
	if len(h.Questions) == 0 {
		return ErrNoQuestions
	}
	return nil
}

// Validate checks the fields required to register a user.
func (u *User) Validate() error {
	if u.Name == "" {
		return ErrEmptyName
	}
	if !IsValidRole(u.Role) {
		return ErrInvalidRole
	}
	return nil
}
