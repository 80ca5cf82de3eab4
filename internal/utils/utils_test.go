package utils

import (
	"strings"
	"testing"
)

func TestShortenString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "hello..."},
		{"hello", 10, "hello"},
		{"", 3, ""},
		{"abcdef", 0, "abcdef"},
		{"abcdef", 6, "abcdef"},
		{"abcdef", 3, "abc..."},
	}

	for _, tt := range tests {
		result := ShortenString(tt.input, tt.length)
		if result != tt.expected {
			t.Errorf("ShortenString(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestRandomString(t *testing.T) {
	a, err := RandomString("play.google.com")
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	b, err := RandomString("play.google.com")
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	if !strings.HasPrefix(a, "play.google.com-") {
		t.Fatalf("expected prefix 'play.google.com-' but got %s", a)
	}
	if len(a) != len("play.google.com-")+8 {
		t.Fatalf("expected 8 random characters but got %s", a)
	}
	if a == b {
		t.Fatalf("expected two different strings but got %s twice", a)
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"//div[@id='x']", "__div[@id_'x']"},
		{"https://play.google.com/console?a=b#c", "https___play.google.com_console_a_b_c"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if result := SafeFileName(tt.input); result != tt.expected {
			t.Errorf("SafeFileName(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}
