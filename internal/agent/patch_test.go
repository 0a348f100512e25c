package agent

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyPatchExactReplacesFirstOccurrence(t *testing.T) {
	content := "купить молоко\nкупить молоко\nхлеб"
	got, fuzzy, err := applyPatch(content, "купить молоко", "купить кефир", 0.72)
	if err != nil {
		t.Fatalf("applyPatch: %v", err)
	}
	if fuzzy {
		t.Fatal("exact match should not be fuzzy")
	}
	want := "купить кефир\nкупить молоко\nхлеб"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestApplyPatchFuzzyLine(t *testing.T) {
	content := "Список дел:\nкупить малоко\nпозвонить маме"
	got, fuzzy, err := applyPatch(content, "купить молоко", "купить молоко и хлеб", 0.72)
	if err != nil {
		t.Fatalf("applyPatch: %v", err)
	}
	if !fuzzy {
		t.Fatal("expected fuzzy replacement")
	}
	if !strings.Contains(got, "купить молоко и хлеб") {
		t.Fatalf("replacement missing: %q", got)
	}
	if strings.Contains(got, "малоко") {
		t.Fatalf("original typo line should be gone: %q", got)
	}
}

func TestApplyPatchNotFound(t *testing.T) {
	_, _, err := applyPatch("совсем другой текст", "купить молоко", "x", 0.72)
	if !errors.Is(err, ErrFragmentNotFound) {
		t.Fatalf("expected ErrFragmentNotFound, got %v", err)
	}
}

func TestApplyPatchCutoffBoundary(t *testing.T) {
	// 18 of 25 runes shared on both sides: ratio 2*18/50 = 0.72 exactly.
	common := "abcdefghijklmnopqr"
	target := common + "STUVWXY"
	line := common + "1234567"
	content := "header\n" + line + "\nfooter"

	got, fuzzy, err := applyPatch(content, target, "REPLACED", 0.72)
	if err != nil {
		t.Fatalf("ratio at cutoff should be accepted: %v", err)
	}
	if !fuzzy || !strings.Contains(got, "REPLACED") {
		t.Fatalf("expected fuzzy replacement, got %q", got)
	}

	// 17 of 25 shared: ratio 0.68, below the cutoff.
	lowCommon := "abcdefghijklmnopq"
	lowTarget := lowCommon + "RSTUVWXY"
	lowLine := lowCommon + "12345678"
	_, _, err = applyPatch("header\n"+lowLine+"\nfooter", lowTarget, "x", 0.72)
	if !errors.Is(err, ErrFragmentNotFound) {
		t.Fatalf("ratio below cutoff should be rejected, got %v", err)
	}
}

func TestApplyPatchCutoffIsTunable(t *testing.T) {
	common := "abcdefghijklmnopqr"
	target := common + "STUVWXY"
	content := common + "1234567" // ratio 0.72 against target

	if _, _, err := applyPatch(content, target, "x", 0.9); !errors.Is(err, ErrFragmentNotFound) {
		t.Fatalf("stricter cutoff should reject, got %v", err)
	}
	if _, _, err := applyPatch(content, target, "x", 0.5); err != nil {
		t.Fatalf("looser cutoff should accept: %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	if r := similarity("", ""); r != 1.0 {
		t.Fatalf("empty strings ratio = %f, want 1.0", r)
	}
	if r := similarity("abc", "abc"); r != 1.0 {
		t.Fatalf("identical ratio = %f, want 1.0", r)
	}
	if r := similarity("abc", "xyz"); r != 0.0 {
		t.Fatalf("disjoint ratio = %f, want 0.0", r)
	}
	// "abcd" vs "abxd": blocks "ab" and "d", 2*3/8 = 0.75
	if r := similarity("abcd", "abxd"); r != 0.75 {
		t.Fatalf("ratio = %f, want 0.75", r)
	}
}
