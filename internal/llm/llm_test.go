package llm

import (
	"testing"

	xerrors "OpenFarm-Chain/internal/errors"
)

func TestValidateAgentRequiresName(t *testing.T) {
	err := Validate(KindAgent, &Content{Description: "d"})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidContent {
		t.Fatalf("expected INVALID_GENERATED_CONTENT, got %v", err)
	}
}

func TestValidateRequestRequiresTitle(t *testing.T) {
	err := Validate(KindRequest, &Content{Description: "d"})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidContent {
		t.Fatalf("expected INVALID_GENERATED_CONTENT, got %v", err)
	}
}

func TestValidateRequiresDescription(t *testing.T) {
	err := Validate(KindAgent, &Content{Name: "n", Description: "  "})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidContent {
		t.Fatalf("expected INVALID_GENERATED_CONTENT, got %v", err)
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := Validate(KindAgent, &Content{Name: "n", Description: "d"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(KindRequest, &Content{Title: "t", Description: "d"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
