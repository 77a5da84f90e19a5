package service_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/studysphere/studysphere/service"
)

func TestValidateSignup(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  string
	}{
		{"Valid", "alice", "alice@example.com", "hunter22pass", ""},
		{"Username Too Short", "al", "alice@example.com", "hunter22pass", "username"},
		{"Username Too Long", strings.Repeat("a", 37), "alice@example.com", "hunter22pass", "username"},
		{"Bad Email", "alice", "not-an-email", "hunter22pass", "email"},
		{"Empty Email", "alice", "", "hunter22pass", "email"},
		{"Short Password", "alice", "alice@example.com", "short", "password"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidateSignup(tc.username, tc.email, tc.password)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestValidateSubmission(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		subject     string
		level       string
		wantErr     string
	}{
		{"Valid", "Trig identities", "Summary of the unit circle", "Math", "Sec 3", ""},
		{"Blank Title", "   ", "desc", "Math", "Sec 3", "title"},
		{"Blank Description", "Title", "", "Math", "Sec 3", "description"},
		{"Unknown Subject", "Title", "desc", "Alchemy", "Sec 3", "unknown subject"},
		{"Subject Wrong Case", "Title", "desc", "math", "Sec 3", "unknown subject"},
		{"Unknown Level", "Title", "desc", "Math", "Sec 5", "unknown level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidateSubmission(tc.title, tc.description, tc.subject, tc.level)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestValidateUploadName(t *testing.T) {
	tests := []struct {
		fileName string
		valid    bool
	}{
		{"notes.pdf", true},
		{"lecture.mp4", true},
		{"diagram.png", true},
		{"scan.jpg", true},
		{"SCAN.JPG", true}, // extension check is case-insensitive
		{"malware.exe", false},
		{"archive.zip", false},
		{"noextension", false},
		{"", false},
	}

	for _, tc := range tests {
		err := service.ValidateUploadName(tc.fileName)
		if tc.valid {
			assert.NoError(t, err, "File: %s", tc.fileName)
		} else {
			assert.Error(t, err, "File: %s", tc.fileName)
		}
	}
}

func TestValidSubject_CoversEnumeration(t *testing.T) {
	for _, subject := range service.Subjects {
		assert.True(t, service.ValidSubject(subject), "Subject: %s", subject)
	}
	assert.False(t, service.ValidSubject(""))
}

func TestValidLevel_CoversEnumeration(t *testing.T) {
	for _, level := range service.Levels {
		assert.True(t, service.ValidLevel(level), "Level: %s", level)
	}
	assert.False(t, service.ValidLevel("Sec1"))
}

// FuzzValidateUploadName checks the extension parser against arbitrary names
func FuzzValidateUploadName(f *testing.F) {
	f.Add("notes.pdf")
	f.Add("../../etc/passwd")
	f.Add("weird name with spaces.png")
	f.Add("")
	f.Add(strings.Repeat("a", 1000) + ".jpg")

	f.Fuzz(func(t *testing.T, input string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ValidateUploadName panicked with input: %q\npanic: %v", input, r)
			}
		}()

		_ = service.ValidateUploadName(input)
	})
}
