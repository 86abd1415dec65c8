package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/identity"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{identity.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", identity.ErrInvalidToken), http.StatusUnauthorized},
		{request.ErrInvalid, http.StatusBadRequest},
		{request.ErrNotFound, http.StatusNotFound},
		{request.ErrForbidden, http.StatusForbidden},
		{request.ErrExpired, http.StatusConflict},
		{rating.ErrVersionConflict, http.StatusConflict},
		{fault.Wrap(fault.KindUnavailable, "db", errors.New("refused")), http.StatusServiceUnavailable},
		{rating.ErrMissingProvider, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
