package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fabsignup/fabsignup/internal/mapping"
	"github.com/fabsignup/fabsignup/internal/resolver"
	"github.com/fabsignup/fabsignup/internal/service"
	"github.com/fabsignup/fabsignup/internal/validation"
	"github.com/fabsignup/fabsignup/pkg/fabman"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"issue", &validation.Issue{Sheet: "Field mappings", Title: "Name not mapped"}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"no form", fmt.Errorf("setup: %w", service.ErrNoForm), http.StatusNotFound, "NO_FORM"},
		{"no key", service.ErrNoAPIKey, http.StatusUnprocessableEntity, "API_KEY_MISSING"},
		{"not allowed", service.ErrNotAllowed, http.StatusBadRequest, "NOT_ALLOWED"},
		{"row", mapping.ErrRowNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unmapped package", &resolver.UnmappedPackageError{Name: "Woodshop"}, http.StatusUnprocessableEntity, "CONFIGURATION_ERROR"},
		{"bad date", &resolver.InvalidDateError{Field: "Date of birth", Value: "soon"}, http.StatusUnprocessableEntity, "MALFORMED_INPUT"},
		{"remote", &fabman.APIError{Method: "POST", URL: "/members", StatusCode: 500}, http.StatusBadGateway, "REMOTE_API_ERROR"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := errorStatus(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, code)
		})
	}
}
