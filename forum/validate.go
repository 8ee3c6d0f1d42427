package forum

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	titleMinLen       = 5
	titleMaxLen       = 200
	descriptionMinLen = 10
	passwordMinLen    = 6
)

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validateQuestion(title, description string) error {
	var v ValidationError
	switch n := utf8.RuneCountInString(title); {
	case blank(title):
		v.add("title", "title is required")
	case n < titleMinLen || n > titleMaxLen:
		v.add("title", "title must be between %d and %d characters", titleMinLen, titleMaxLen)
	}
	switch {
	case blank(description):
		v.add("description", "description is required")
	case utf8.RuneCountInString(description) < descriptionMinLen:
		v.add("description", "description must be at least %d characters", descriptionMinLen)
	}
	return v.err()
}

func validateReply(content string) error {
	var v ValidationError
	if blank(content) {
		v.add("content", "content is required")
	}
	return v.err()
}

func validatePage(name string) error {
	var v ValidationError
	if blank(name) {
		v.add("name", "name is required")
	}
	return v.err()
}

func validatePaging(page, size int) error {
	var v ValidationError
	if page < 0 {
		v.add("page", "page must not be negative")
	}
	if size < 1 {
		v.add("size", "size must be at least 1")
	}
	return v.err()
}

func validateRegistration(name, email, password string) error {
	var v ValidationError
	if blank(name) {
		v.add("name", "name is required")
	}
	if blank(email) {
		v.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != strings.TrimSpace(email) {
		// Display-name forms such as "Alice <a@x.com>" parse but are not a
		// bare mailbox.
		v.add("email", "email is not a valid address")
	}
	if utf8.RuneCountInString(password) < passwordMinLen {
		v.add("password", "password must be at least %d characters", passwordMinLen)
	}
	return v.err()
}
