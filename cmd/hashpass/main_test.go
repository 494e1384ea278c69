package main

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr bool
	}{
		{"argument", []string{"s3cret"}, "", "s3cret", false},
		{"stdin", nil, "s3cret\n", "s3cret", false},
		{"stdin crlf", nil, "s3cret\r\n", "s3cret", false},
		{"stdin no newline", nil, "s3cret", "s3cret", false},
		{"empty", nil, "\n", "", true},
		{"too many", []string{"a", "b"}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := run(tt.args, strings.NewReader(tt.stdin))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(tt.want)); err != nil {
				t.Fatalf("hash does not match %q: %v", tt.want, err)
			}
		})
	}
}
