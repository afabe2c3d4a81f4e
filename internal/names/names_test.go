package names

import "testing"

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jiří", "Jiri"},
		{"Jan Novák", "Jan Novak"},
		{"François", "Francois"},
		{"Nguyễn", "Nguyen"},
		{"plain ascii", "plain ascii"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripDiacritics(tt.in); got != tt.want {
			t.Errorf("StripDiacritics(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jan Novák", "jan novak"},
		{"Anna-Marie  Dvořáková", "anna marie dvorakova"},
		{"  Petr\tSvoboda ", "petr svoboda"},
		{"MÜLLER", "muller"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
