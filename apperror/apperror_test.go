package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad input"), http.StatusBadRequest},
		{"business rule", BusinessRule("Minimum order amount is $%v", 50), http.StatusBadRequest},
		{"not found", NotFound("Order not found"), http.StatusNotFound},
		{"unauthorized", Unauthorized("Not authorized"), http.StatusUnauthorized},
		{"internal", Internal("Server Error", errors.New("boom")), http.StatusInternalServerError},
		{"foreign", errors.New("raw"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound("Shop not found")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessageHidesForeignErrors(t *testing.T) {
	assert.Equal(t, "Server Error", PublicMessage(errors.New("mongo: connection refused")))
	assert.Equal(t, "Minimum order amount is $50", PublicMessage(BusinessRule("Minimum order amount is $%v", 50)))
}

func TestFieldsOf(t *testing.T) {
	err := Validation("Validation failed", FieldError{Field: "items", Message: "required"})
	assert.Len(t, FieldsOf(err), 1)
	assert.Nil(t, FieldsOf(errors.New("x")))
}
