package storage

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"internal", status.Error(codes.Internal, "stream broke"), true},
		{"unavailable", status.Error(codes.Unavailable, "try later"), true},
		{"not found", status.Error(codes.NotFound, "no doc"), false},
		{"permission denied", status.Error(codes.PermissionDenied, "nope"), false},
		{"plain error", errors.New("boom"), false},
		{"wrapped unavailable", fmt.Errorf("commit: %w", status.Error(codes.Unavailable, "try later")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
