package publisher

import "testing"

func TestSubject(t *testing.T) {
	if got := Subject(12, "trip-1"); got != "buses.12.trip-1" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := Subject(3, "a.b *>"); got != "buses.3.a_b___" {
		t.Fatalf("unexpected sanitized subject %q", got)
	}
	if got := Subject(3, " "); got != "buses.3._" {
		t.Fatalf("unexpected empty token subject %q", got)
	}
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	if _, err := NewNATSPublisher("nats://127.0.0.1:1", nil); err == nil {
		t.Fatalf("expected connect error")
	}
}
