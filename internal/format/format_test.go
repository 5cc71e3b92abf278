package format

import "testing"

func TestStroopsToXLM(t *testing.T) {
	tests := []struct {
		name     string
		stroops  int64
		expected string
	}{
		{"one XLM", 10000000, "1"},
		{"zero", 0, "0"},
		{"small fraction", 100, "0.00001"},
		{"single stroop", 1, "0.0000001"},
		{"mixed", 15000000, "1.5"},
		{"large", 123456789012345, "12345678.9012345"},
		{"negative", -25000000, "-2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StroopsToXLM(tt.stroops); got != tt.expected {
				t.Errorf("StroopsToXLM(%d) = %q, expected %q", tt.stroops, got, tt.expected)
			}
		})
	}
}

func TestTruncateHash(t *testing.T) {
	hash := "3389e9f0f1a65f19736cacf544c2e825313e8447f569233bb8db39aa607c8889"

	got := TruncateHash(hash, 6, 6)
	expected := "3389e9...7c8889"
	if got != expected {
		t.Errorf("TruncateHash = %q, expected %q", got, expected)
	}

	// Short inputs come back untouched, no "..." inserted.
	short := "abcdef"
	if got := TruncateHash(short, 4, 4); got != short {
		t.Errorf("TruncateHash(short) = %q, expected %q", got, short)
	}

	// Boundary: len == start+end+3 means no truncation.
	boundary := "abcdefghijk" // 11 chars, start=4 end=4 -> 4+4+3=11
	if got := TruncateHash(boundary, 4, 4); got != boundary {
		t.Errorf("TruncateHash(boundary) = %q, expected %q", got, boundary)
	}

	// One past the boundary truncates.
	if got := TruncateHash(boundary+"l", 4, 4); got != "abcd...ijkl" {
		t.Errorf("TruncateHash(boundary+1) = %q, expected %q", got, "abcd...ijkl")
	}
}
