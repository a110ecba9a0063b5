package bytesize

import (
	"strings"
	"testing"
	"unicode/utf16"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"é", 2},
		{"€", 3},
		{"😀", 4},
		{"\u007f", 1},
		{"\u0080", 2},
		{"\u07ff", 2},
		{"\u0800", 3},
		{"\uffff", 3},
		{"\U00010000", 4},
		{`{"e":"ue","ue_pr":"café €😀"}`, len(`{"e":"ue","ue_pr":"café €😀"}`)},
	}
	for _, tt := range tests {
		if got := Estimate(tt.in); got != tt.want {
			t.Errorf("Estimate(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEstimate_MatchesEncodedLength(t *testing.T) {
	samples := []string{
		"plain ascii payload",
		strings.Repeat("ü", 100),
		"日本語のテキスト",
		"mixed a é € 😀 𝄞 end",
	}
	for _, s := range samples {
		if got := Estimate(s); got != len(s) {
			t.Errorf("Estimate(%q) = %d, want %d", s, got, len(s))
		}
	}
}

func TestEstimate_InvalidBytes(t *testing.T) {
	// One stray continuation byte becomes U+FFFD on the wire.
	if got := Estimate("a\x80b"); got != 5 {
		t.Errorf("Estimate with invalid byte = %d, want 5", got)
	}
}

func TestEstimateUTF16(t *testing.T) {
	tests := []struct {
		name string
		in   []uint16
		want int
	}{
		{"ascii", utf16.Encode([]rune("a")), 1},
		{"two byte", utf16.Encode([]rune("é")), 2},
		{"three byte", utf16.Encode([]rune("€")), 3},
		{"surrogate pair", utf16.Encode([]rune("😀")), 4},
		{"pair among text", utf16.Encode([]rune("a😀b")), 6},
		{"two pairs", utf16.Encode([]rune("😀😀")), 8},
		{"lone high", []uint16{0xD83D}, 3},
		{"lone low", []uint16{0xDE00}, 3},
		{"high then ascii", []uint16{0xD83D, 'a'}, 4},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateUTF16(tt.in); got != tt.want {
				t.Errorf("EstimateUTF16(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestEstimateUTF16_AgreesWithEstimate(t *testing.T) {
	for _, s := range []string{"hello", "café", "€uro", "😀 smile", "𝄞 clef"} {
		if a, b := EstimateUTF16(utf16.Encode([]rune(s))), Estimate(s); a != b {
			t.Errorf("%q: EstimateUTF16 = %d, Estimate = %d", s, a, b)
		}
	}
}
