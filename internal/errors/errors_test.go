package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCategoryClassification(t *testing.T) {
	nf := NotFound("builds/42/statics.tar.gz")
	if !IsNotFound(nf) {
		t.Errorf("expected notfound category, got %s", GetCategory(nf))
	}
	if IsTransport(nf) {
		t.Error("notfound error must not classify as transport")
	}

	tr := Transport(stderrors.New("connection refused"), "upload %s", "statics")
	if !IsTransport(tr) {
		t.Errorf("expected transport category, got %s", GetCategory(tr))
	}
}

func TestClassificationThroughWrapping(t *testing.T) {
	inner := NotFound("builds/7/frontend.zip")
	wrapped := fmt.Errorf("fetch stage: %w", inner)
	if !IsNotFound(wrapped) {
		t.Error("category must survive fmt.Errorf wrapping")
	}
}

func TestStageFailureAttribution(t *testing.T) {
	cause := stderrors.New("renderer exited 1")
	sf := NewStageFailure("build-pages", cause)

	if sf.Stage != "build-pages" {
		t.Errorf("stage = %q, want build-pages", sf.Stage)
	}
	if !stderrors.Is(sf, cause) {
		t.Error("StageFailure must unwrap to its cause")
	}
}

func TestStageFailureInnermostWins(t *testing.T) {
	inner := NewStageFailure("compile-styles", stderrors.New("sass not found"))
	outer := NewStageFailure("build-frontend", inner)
	if outer.Stage != "compile-styles" {
		t.Errorf("stage = %q, want innermost compile-styles", outer.Stage)
	}
}

func TestGetCategoryDefaultsToInternal(t *testing.T) {
	if got := GetCategory(stderrors.New("plain")); got != CategoryInternal {
		t.Errorf("category = %s, want internal", got)
	}
}
