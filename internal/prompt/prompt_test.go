package prompt

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAsk(t *testing.T) {
	out := &bytes.Buffer{}
	p := New(strings.NewReader("  hello  \nsecond"), out)

	answer, err := p.Ask("Question?")
	if err != nil || answer != "hello" {
		t.Fatalf("Ask() = %q, %v", answer, err)
	}
	if out.String() != "Question?\n> " {
		t.Errorf("output = %q", out.String())
	}

	// Last line without a newline is still an answer.
	answer, err = p.Ask("Again?")
	if err != nil || answer != "second" {
		t.Fatalf("Ask() = %q, %v", answer, err)
	}

	if _, err := p.Ask("Nothing left?"); err == nil {
		t.Error("Ask() at EOF should fail")
	}
}

func TestAskGuildID(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
		valid    bool
	}{
		{input: "123456789012345678\n", expected: 123456789012345678, valid: true},
		{input: "abc\n", valid: false},
		{input: "0\n", valid: false},
		{input: "\n", valid: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			id, err := New(strings.NewReader(tt.input), &bytes.Buffer{}).AskGuildID()
			if !tt.valid {
				if !errors.Is(err, ErrInvalidGuildID) {
					t.Errorf("AskGuildID() error = %v, want ErrInvalidGuildID", err)
				}
				return
			}
			if err != nil || uint64(id) != tt.expected {
				t.Errorf("AskGuildID() = %d, %v", id, err)
			}
		})
	}
}

func TestAskCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		valid    bool
	}{
		{input: "5\n", expected: 5, valid: true},
		{input: "65536\n", expected: 65536, valid: true},
		{input: "0\n", valid: false},
		{input: "-3\n", valid: false},
		{input: "ten\n", valid: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			n, err := New(strings.NewReader(tt.input), &bytes.Buffer{}).AskCount()
			if !tt.valid {
				if !errors.Is(err, ErrInvalidCount) {
					t.Errorf("AskCount() error = %v, want ErrInvalidCount", err)
				}
				return
			}
			if err != nil || n != tt.expected {
				t.Errorf("AskCount() = %d, %v", n, err)
			}
		})
	}
}

func TestResolveToken(t *testing.T) {
	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.txt")
		if err := os.WriteFile(path, []byte("stored-token\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		token, err := ResolveToken(path, New(strings.NewReader(""), &bytes.Buffer{}))
		if err != nil || token != "stored-token" {
			t.Fatalf("ResolveToken() = %q, %v", token, err)
		}
	})

	t.Run("prompt and persist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.txt")

		token, err := ResolveToken(path, New(strings.NewReader("new-token\n"), &bytes.Buffer{}))
		if err != nil || token != "new-token" {
			t.Fatalf("ResolveToken() = %q, %v", token, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("token file not written: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("token file mode = %o, want 600", info.Mode().Perm())
		}
		data, _ := os.ReadFile(path)
		if string(data) != "new-token" {
			t.Errorf("token file = %q", data)
		}
	})

	t.Run("empty answer", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.txt")
		_, err := ResolveToken(path, New(strings.NewReader("\n"), &bytes.Buffer{}))
		if !errors.Is(err, ErrEmptyToken) {
			t.Errorf("ResolveToken() error = %v, want ErrEmptyToken", err)
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Error("token file written for empty answer")
		}
	})
}
