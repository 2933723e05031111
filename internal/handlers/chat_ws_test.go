package handlers

import (
	"testing"
	"time"
)

type deadlineRecorder struct {
	deadline time.Time
	calls    int
}

func (d *deadlineRecorder) SetReadDeadline(t time.Time) error {
	d.deadline = t
	d.calls++
	return nil
}

func TestRefreshReadDeadline(t *testing.T) {
	rec := &deadlineRecorder{}
	before := time.Now()

	refreshReadDeadline(rec)

	if rec.calls != 1 {
		t.Fatalf("SetReadDeadline called %d times, want 1", rec.calls)
	}
	want := before.Add(chatReadWait)
	if rec.deadline.Before(want) || rec.deadline.After(want.Add(2*time.Second)) {
		t.Fatalf("deadline = %v, want ~%v ahead of now", rec.deadline, chatReadWait)
	}

	// A later refresh pushes the cutoff further out, so any frame keeps the
	// connection alive regardless of whether a protocol pong ever arrives.
	first := rec.deadline
	time.Sleep(10 * time.Millisecond)
	refreshReadDeadline(rec)
	if !rec.deadline.After(first) {
		t.Fatal("second refresh did not extend the deadline")
	}
}

func TestExtractBearerToken(t *testing.T) {
	if got := extractBearerToken("Bearer abc123"); got != "abc123" {
		t.Fatalf("token = %q, want abc123", got)
	}
	if got := extractBearerToken("Basic abc123"); got != "" {
		t.Fatalf("non-bearer header yielded %q", got)
	}
	if got := extractBearerToken(""); got != "" {
		t.Fatalf("empty header yielded %q", got)
	}
}
