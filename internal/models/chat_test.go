package models

import "testing"

func TestUserKindValid(t *testing.T) {
	if !KindTeacher.Valid() || !KindStudent.Valid() {
		t.Fatal("known kinds must validate")
	}
	if UserKind("Admin").Valid() || UserKind("").Valid() {
		t.Fatal("unknown kinds must not validate")
	}
}

func TestMediaKindValid(t *testing.T) {
	for _, k := range []MediaKind{MediaImage, MediaDocument, MediaVideo} {
		if !k.Valid() {
			t.Fatalf("%s should be valid", k)
		}
	}
	if MediaKind("audio").Valid() {
		t.Fatal("audio is not a supported media kind")
	}
}

func TestMessagePreview(t *testing.T) {
	withText := &Message{Text: "hello", MediaURL: "https://cdn.example.com/a.png", MediaKind: MediaImage}
	if got := withText.Preview(); got != "hello" {
		t.Fatalf("preview = %q, want hello", got)
	}

	mediaOnly := &Message{MediaURL: "https://cdn.example.com/a.png", MediaKind: MediaImage}
	if got := mediaOnly.Preview(); got != MediaMessagePreview {
		t.Fatalf("preview = %q, want %q", got, MediaMessagePreview)
	}
}
