package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"setlist/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("permission denied")
	err := services.Wrap(services.ErrAccess, "scanner", "walk", "reading entry", base)

	if !errors.Is(err, services.ErrAccess) {
		t.Fatalf("expected wrapped error to match ErrAccess, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to preserve cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "scanner: walk: reading entry") {
		t.Fatalf("unexpected error detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected nil marker to default to ErrTransient, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %v", err)
	}
}

func TestIsRunAborting(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"parse", services.Wrap(services.ErrParse, "liveset", "parse", "corrupt set", nil), false},
		{"access", services.Wrap(services.ErrAccess, "scanner", "walk", "entry unreadable", nil), false},
		{"validation", services.Wrap(services.ErrValidation, "index", "add location", "root missing", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "load", "bad weights", nil), true},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsRunAborting(tc.err); got != tc.want {
				t.Fatalf("IsRunAborting(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
