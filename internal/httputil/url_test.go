package httputil

import (
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid HTTPS", "https://example.com/path", false},
		{"valid HTTP", "http://localhost:4000/rosary", false},
		{"javascript scheme rejected", "javascript:alert(1)", true},
		{"data scheme rejected", "data:text/html,<h1>Hi</h1>", true},
		{"FTP rejected", "ftp://example.com/file", true},
		{"file scheme rejected", "file:///etc/passwd", true},
		{"empty string", "", true},
		{"no host", "https://", true},
		{"valid with query", "https://example.com/path?q=test&a=b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://example.org/pray/today", "audio/main.mp3", "https://example.org/pray/audio/main.mp3"},
		{"https://example.org/pray/today", "/static/intro.mp3", "https://example.org/static/intro.mp3"},
		{"https://example.org/pray/", "https://cdn.example.net/a.mp3", "https://cdn.example.net/a.mp3"},
	}
	for _, tt := range tests {
		got, err := ResolveURL(tt.base, tt.ref)
		if err != nil {
			t.Fatalf("ResolveURL(%q, %q) error: %v", tt.base, tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}

func TestJoinPath(t *testing.T) {
	got := JoinPath("http://localhost:4000/rosary/", "events")
	if got != "http://localhost:4000/rosary/events" {
		t.Errorf("JoinPath = %q, want %q", got, "http://localhost:4000/rosary/events")
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "joyful", false},
		{"with digits and dashes", "set-2024_05.1", false},
		{"empty", "", true},
		{"path traversal dots", "../../etc/passwd", true},
		{"shell injection semicolon", "123; rm -rf /", true},
		{"newline injection", "123\n456", true},
		{"too long", string(make([]byte, 300)), true},
		{"spaces", "set id", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
