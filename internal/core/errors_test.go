package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	if got, want := ErrCatalogLoad.Error(), "[CATALOG_LOAD_FAILED] event catalog failed to load"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	got := WrapError(ErrProviderUnavailable, context.DeadlineExceeded).Error()
	if want := "[PROVIDER_UNAVAILABLE] market data provider unavailable: context deadline exceeded"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("fetch XLF chain: %w", WrapError(ErrProviderUnavailable, context.DeadlineExceeded))

	if !errors.Is(wrapped, ErrProviderUnavailable) {
		t.Error("expected match on ErrProviderUnavailable")
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("expected the cause to stay reachable")
	}
	if errors.Is(wrapped, ErrEnrichment) {
		t.Error("unexpected match on ErrEnrichment")
	}
	if errors.Is(ErrCatalogLoad, ErrClassification) {
		t.Error("different codes should not match")
	}
}

func TestWrapError_LeavesBaseUntouched(t *testing.T) {
	cause := errors.New(`unknown sector "Crypto"`)
	wrapped := WrapError(ErrInvalidVocabulary, cause)

	if wrapped.Code != ErrInvalidVocabulary.Code {
		t.Errorf("Code = %s, want %s", wrapped.Code, ErrInvalidVocabulary.Code)
	}
	if wrapped.Cause != cause {
		t.Errorf("Cause = %v, want %v", wrapped.Cause, cause)
	}
	if ErrInvalidVocabulary.Cause != nil {
		t.Errorf("base error was modified: %v", ErrInvalidVocabulary.Cause)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrScoring, "SCORING_FAILED"},
		{fmt.Errorf("run: %w", WrapError(ErrClassification, errors.New("bad json"))), "CLASSIFICATION_FAILED"},
		{errors.New("plain"), "UNKNOWN"},
		{nil, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
