package validation_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/validation"
)

type registerRequest struct {
	Name     string `json:"name" validate:"notblank,min=2,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5,max=256"`
}

type itemRequest struct {
	Title    string  `json:"title" validate:"notblank,max=50"`
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,http_url"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(registerRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "hunter2",
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       registerRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "blank name",
			req:       registerRequest{Name: "   ", Email: "ada@example.com", Password: "hunter2"},
			wantField: "name",
			wantMsg:   "is required",
		},
		{
			name:      "invalid email",
			req:       registerRequest{Name: "Ada", Email: "not-an-email", Password: "hunter2"},
			wantField: "email",
			wantMsg:   "must be a valid email address",
		},
		{
			name:      "password too short",
			req:       registerRequest{Name: "Ada", Email: "ada@example.com", Password: "abc"},
			wantField: "password",
			wantMsg:   "must be at least 5 characters",
		},
		{
			name:      "password too long",
			req:       registerRequest{Name: "Ada", Email: "ada@example.com", Password: strings.Repeat("x", 257)},
			wantField: "password",
			wantMsg:   "must not exceed 256 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_LengthCountsCharacters(t *testing.T) {
	v := validation.New()

	// 50 multi-byte characters fit; 51 do not.
	assert.NoError(t, v.Validate(itemRequest{Title: strings.Repeat("é", 50)}))
	assert.Error(t, v.Validate(itemRequest{Title: strings.Repeat("é", 51)}))
}

func TestValidator_OptionalURL(t *testing.T) {
	v := validation.New()

	good := "https://example.com/a.png"
	bad := "not a url"

	assert.NoError(t, v.Validate(itemRequest{Title: "x"}))
	assert.NoError(t, v.Validate(itemRequest{Title: "x", ImageURL: &good}))

	err := v.Validate(itemRequest{Title: "x", ImageURL: &bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
