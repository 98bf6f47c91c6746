package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHasCode(t *testing.T) {
	base := stderrors.New("connection reset")
	fetch := FetchFailed("https://example.test/page2", base)
	wrapped := fmt.Errorf("rates stage: %w", fetch)
	nested := RefreshTransaction("azure_rates", DatabaseError("insert failed", base))

	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"direct", fetch, ErrCodeFetchFailed, true},
		{"wrapped with fmt", wrapped, ErrCodeFetchFailed, true},
		{"other code", wrapped, ErrCodeJoinCompute, false},
		{"plain error", base, ErrCodeFetchFailed, false},
		{"nil", nil, ErrCodeFetchFailed, false},
		{"outer of nested", nested, ErrCodeRefreshTransaction, true},
		{"inner of nested", nested, ErrCodeDatabase, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_UnwrapAndMessage(t *testing.T) {
	base := stderrors.New("timeout")
	err := FetchFailed("https://example.test", base)

	if !stderrors.Is(err, base) {
		t.Error("expected errors.Is to find the internal error")
	}
	if got := err.Error(); got != "failed to fetch https://example.test: timeout" {
		t.Errorf("Error() = %q", got)
	}
	if Code(err) != ErrCodeFetchFailed {
		t.Errorf("Code() = %q", Code(err))
	}
	if StatusCode(err) != http.StatusBadGateway {
		t.Errorf("StatusCode() = %d", StatusCode(err))
	}
	if StatusCode(base) != http.StatusInternalServerError {
		t.Errorf("StatusCode(plain) = %d", StatusCode(base))
	}
}

func TestUnknownResourceType(t *testing.T) {
	err := UnknownResourceType("galleries")
	if err.Code != ErrCodeUnknownResourceType {
		t.Errorf("Code = %q", err.Code)
	}
	details, ok := err.Details.(map[string]string)
	if !ok || details["resource_type"] != "galleries" {
		t.Errorf("Details = %#v", err.Details)
	}
}
