package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfUnwrapsChains(t *testing.T) {
	base := Forbidden("no permission")
	wrapped := fmt.Errorf("delete music: %w", base)

	if got := KindOf(wrapped); got != KindForbidden {
		t.Fatalf("KindOf(wrapped) = %v, want KindForbidden", got)
	}
	if !IsKind(wrapped, KindForbidden) {
		t.Fatalf("IsKind(wrapped, KindForbidden) = false")
	}
	if IsKind(wrapped, KindNotFound) {
		t.Fatalf("forbidden error reported as not found")
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != 0 {
		t.Fatalf("KindOf(plain) = %v, want 0", got)
	}
	if got := MessageOf(errors.New("secret detail")); got != "internal error" {
		t.Fatalf("MessageOf(plain) = %q, want generic message", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindUpstream, http.StatusBadGateway},
		{Kind(0), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.kind.HTTPStatus(); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestUpstreamPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("search provider failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable via errors.Is")
	}
	if got := MessageOf(err); got != "search provider failed" {
		t.Fatalf("MessageOf = %q", got)
	}
}
