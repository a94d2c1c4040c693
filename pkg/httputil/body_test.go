package httputil

import (
	"strings"
	"testing"
)

func TestReadAllWithLimitTruncates(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("hello world"), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !truncated {
		t.Fatal("expected truncated=true")
	}
	if string(body) != "hello" {
		t.Fatalf("expected truncated body 'hello', got %q", body)
	}
}

func TestReadAllWithLimitUnderLimit(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("hi"), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truncated {
		t.Fatal("expected truncated=false")
	}
	if string(body) != "hi" {
		t.Fatalf("expected body 'hi', got %q", body)
	}
}

func TestReadAllStrictRejectsOversized(t *testing.T) {
	_, err := ReadAllStrict(strings.NewReader("too much data"), 4)
	if err == nil {
		t.Fatal("expected BodyTooLargeError")
	}
	var tooLarge *BodyTooLargeError
	if !errorsAs(err, &tooLarge) {
		t.Fatalf("expected *BodyTooLargeError, got %T", err)
	}
}

func errorsAs(err error, target **BodyTooLargeError) bool {
	e, ok := err.(*BodyTooLargeError)
	if !ok {
		return false
	}
	*target = e
	return true
}
