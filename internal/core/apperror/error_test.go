package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusByCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{NewValidation("bad"), http.StatusBadRequest},
		{NewNotFound("purchase order", "x"), http.StatusNotFound},
		{NewInsufficientStock("id", "Diazepam", 5, 2), http.StatusUnprocessableEntity},
		{NewAlreadyProcessed("purchase order", "x"), http.StatusConflict},
		{NewTransientWrite("goods receipt", errors.New("reset")), http.StatusServiceUnavailable},
		{NewDuplicate("stock batch", "batch_no", "B1"), http.StatusConflict},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, GetHTTPStatus(tt.err), tt.err.Error())
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("apply line 2: %w", NewInsufficientStock("id", "Diazepam", 5, 2))

	assert.True(t, IsCode(err, CodeInsufficientStock))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsCode(errors.New("plain"), CodeInsufficientStock))
}

func TestTransientWriteUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransientWrite("goods receipt", cause).WithDetail("applied_lines", []int{1, 2})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []int{1, 2}, err.Details["applied_lines"])
	assert.Equal(t, "goods receipt", err.Details["operation"])
}
