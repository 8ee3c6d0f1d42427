package forum

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var v *ValidationError
	require.True(t, errors.As(err, &v), "expected ValidationError, got %v", err)
	names := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestValidateQuestion(t *testing.T) {
	desc := "long enough text"
	tests := []struct {
		name        string
		title, desc string
		want        []string
	}{
		{"valid", "Hello", desc, nil},
		{"max title", strings.Repeat("x", 200), desc, nil},
		{"blank title", "   ", desc, []string{"title"}},
		{"short title", "Hey", desc, []string{"title"}},
		{"long title", strings.Repeat("x", 201), desc, []string{"title"}},
		{"multibyte title counts runes", "ééééé", desc, nil},
		{"short description", "Hello", "too short", []string{"description"}},
		{"blank description", "Hello", "            ", []string{"description"}},
		{"both", "", "", []string{"title", "description"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateQuestion(tt.title, tt.desc)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.want, fieldsOf(t, err))
		})
	}
}

func TestValidatePaging(t *testing.T) {
	assert.NoError(t, validatePaging(0, 1))
	assert.ErrorIs(t, validatePaging(-1, 20), ErrValidation)
	assert.ErrorIs(t, validatePaging(0, 0), ErrValidation)
}

func TestValidateRegistration(t *testing.T) {
	assert.NoError(t, validateRegistration("Alice", "alice@example.com", "secret"))

	assert.NoError(t, validateRegistration("Alice", "  alice@example.com ", "secret"))

	err := validateRegistration("", "not-an-email", "123")
	assert.Equal(t, []string{"name", "email", "password"}, fieldsOf(t, err))

	for _, email := range []string{"Alice <alice@example.com>", "<alice@example.com>", `"Alice" <alice@example.com>`} {
		err := validateRegistration("Alice", email, "secret")
		assert.Equal(t, []string{"email"}, fieldsOf(t, err), email)
	}
}

func TestValidateReplyAndPage(t *testing.T) {
	assert.NoError(t, validateReply("ok"))
	assert.ErrorIs(t, validateReply(" \n"), ErrValidation)
	assert.NoError(t, validatePage("CSE"))
	assert.ErrorIs(t, validatePage(""), ErrValidation)
}
