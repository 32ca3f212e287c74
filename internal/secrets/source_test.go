package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStatic(t *testing.T) {
	src := NewStatic("shh")
	got, err := src.SigningSecret(context.Background())
	if err != nil {
		t.Fatalf("SigningSecret() error = %v", err)
	}
	if got != "shh" {
		t.Errorf("SigningSecret() = %q, want %q", got, "shh")
	}
}

func TestStatic_Empty(t *testing.T) {
	src := NewStatic("")
	_, err := src.SigningSecret(context.Background())
	if !errors.Is(err, ErrNoSecret) {
		t.Errorf("SigningSecret() error = %v, want ErrNoSecret", err)
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("shh-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	src := NewFile(path)
	got, err := src.SigningSecret(context.Background())
	if err != nil {
		t.Fatalf("SigningSecret() error = %v", err)
	}
	if got != "shh-from-file" {
		t.Errorf("SigningSecret() = %q, want trailing whitespace trimmed", got)
	}
}

func TestFile_CachedAcrossReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("first"), 0o600); err != nil {
		t.Fatal(err)
	}

	src := NewFile(path)
	if _, err := src.SigningSecret(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Rewrites after the first read do not change the served value.
	if err := os.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := src.SigningSecret(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "first" {
		t.Errorf("SigningSecret() = %q, want cached %q", got, "first")
	}
}

func TestFile_Missing(t *testing.T) {
	src := NewFile(filepath.Join(t.TempDir(), "nope"))
	if _, err := src.SigningSecret(context.Background()); err == nil {
		t.Error("expected error for missing secret file")
	}
}

func TestFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	src := NewFile(path)
	_, err := src.SigningSecret(context.Background())
	if !errors.Is(err, ErrNoSecret) {
		t.Errorf("SigningSecret() error = %v, want ErrNoSecret", err)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		inline  string
		file    string
		want    any
		wantErr bool
	}{
		{"inline wins", "inline", "/tmp/secret", &Static{}, false},
		{"file only", "", "/tmp/secret", &File{}, false},
		{"neither", "", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := FromConfig(tt.inline, tt.file)
			if tt.wantErr {
				if !errors.Is(err, ErrNoSecret) {
					t.Errorf("FromConfig() error = %v, want ErrNoSecret", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromConfig() error = %v", err)
			}
			switch tt.want.(type) {
			case *Static:
				if _, ok := src.(*Static); !ok {
					t.Errorf("FromConfig() = %T, want *Static", src)
				}
			case *File:
				if _, ok := src.(*File); !ok {
					t.Errorf("FromConfig() = %T, want *File", src)
				}
			}
		})
	}
}
