package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"torrdrop/internal/services"
)

func TestWrapTagsMarkerAndDetail(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "transmission", "submit", "rpc call failed", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
	for _, fragment := range []string{"transmission", "submit", "rpc call failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "archiver", "move", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("nil marker should default to transient, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient marker", services.Wrap(services.ErrTransient, "c", "op", "", nil), true},
		{"permanent marker", services.Wrap(services.ErrPermanent, "c", "op", "", nil), false},
		{"configuration marker", services.Wrap(services.ErrConfiguration, "c", "op", "", nil), false},
		{"timeout marker", services.Wrap(services.ErrTimeout, "c", "op", "", nil), true},
		{"deadline exceeded", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), false},
		{"unclassified", errors.New("mystery"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	err := services.Wrap(services.ErrPermanent, "transmission", "submit", "engine rejected descriptor", nil)
	if !services.IsPermanent(err) {
		t.Fatalf("expected permanent classification for %v", err)
	}
	if services.IsPermanent(errors.New("plain")) {
		t.Fatal("plain errors must not classify as permanent")
	}
}
