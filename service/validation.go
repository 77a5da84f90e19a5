package service

import (
	"fmt"
	"net/mail"
	"path"
	"strings"
)

// ValidationError rejects a request before any write; the message is safe
// to show to the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Subjects is the fixed subject enumeration, in display order.
var Subjects = []string{
	"English", "Chinese", "Malay", "Tamil",
	"Math", "Physics", "Chemistry", "Biology",
	"Computing", "Biotechnology", "Design Studies", "Electronics",
	"Geography", "History", "Social Studies", "CCE", "Changemakers",
}

// Levels is the fixed level-tag enumeration.
var Levels = []string{"Sec 1", "Sec 2", "Sec 3", "Sec 4"}

// Accepted attachment types, by file extension.
var allowedUploadExts = map[string]struct{}{
	".pdf": {},
	".mp4": {},
	".png": {},
	".jpg": {},
}

const (
	minUsernameLen = 3
	maxUsernameLen = 36
	minPasswordLen = 8
)

func ValidSubject(subject string) bool {
	for _, s := range Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

func ValidLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

func ValidateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return validationErrorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	return nil
}

func ValidateSignup(username, email, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return validationErrorf("invalid email address")
	}
	if len(password) < minPasswordLen {
		return validationErrorf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func ValidateSubmission(title, description, subject, level string) error {
	if strings.TrimSpace(title) == "" {
		return validationErrorf("title is required")
	}
	if strings.TrimSpace(description) == "" {
		return validationErrorf("description is required")
	}
	if !ValidSubject(subject) {
		return validationErrorf("unknown subject: %s", subject)
	}
	if !ValidLevel(level) {
		return validationErrorf("unknown level: %s", level)
	}
	return nil
}

func ValidateUploadName(fileName string) error {
	ext := strings.ToLower(path.Ext(fileName))
	if _, ok := allowedUploadExts[ext]; !ok {
		return validationErrorf("unsupported file type: %s (accepted: pdf, mp4, png, jpg)", ext)
	}
	return nil
}
