package xhtml

import "testing"

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want bool
	}{
		{"html tag", []byte("<html><head>"), true},
		{"doctype", []byte("<!DOCTYPE html><html>"), true},
		{"leading whitespace", []byte("\n  <html>"), true},
		{"mp4 bytes", []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeHTML(tt.in); got != tt.want {
				t.Errorf("LooksLikeHTML = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageTitle(t *testing.T) {
	got := PageTitle([]byte("<html><head><title>Access Denied</title></head><body>"))
	if got != "Access Denied" {
		t.Errorf("PageTitle = %q", got)
	}
	// truncated input still parses
	got = PageTitle([]byte("<html><head><title>Blocked"))
	if got != "Blocked" {
		t.Errorf("PageTitle(truncated) = %q", got)
	}
	if got := PageTitle([]byte("<html><body>no title")); got != "" {
		t.Errorf("PageTitle(no title) = %q, want empty", got)
	}
}
