package domain

import (
	"testing"
	"time"
)

func TestParseServiceType(t *testing.T) {
	got, err := ParseServiceType(" Expressway ")
	if err != nil || got != ServiceExpressway {
		t.Fatalf("unexpected parse result: %v %v", got, err)
	}
	if _, err := ParseServiceType("luxury"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if ServiceType("").Valid() {
		t.Fatalf("empty type must be invalid")
	}
}

func TestAssignmentActive(t *testing.T) {
	a := Assignment{ID: "a-1"}
	if !a.Active() {
		t.Fatalf("expected active assignment")
	}
	ended := time.Now()
	a.EndedAt = &ended
	if a.Active() {
		t.Fatalf("expected ended assignment")
	}
}
