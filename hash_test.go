package assetpipe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// TestHashContent checks that streaming through the pooled buffer gives the
// same digest as hashing the bytes directly.
func TestHashContent(t *testing.T) {
	memFs := afero.NewMemMapFs()

	testCases := []struct {
		name    string
		content []byte
	}{
		{name: "Normal file", content: []byte("body { color: red }")},
		{name: "Empty file", content: []byte{}},
		{name: "Larger than buffer", content: bytes.Repeat([]byte("a"), defaultBufferSize*2+7)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := "/src/" + strings.ReplaceAll(tc.name, " ", "_")
			if err := afero.WriteFile(memFs, path, tc.content, 0o644); err != nil {
				t.Fatalf("Failed to write test file: %v", err)
			}

			file, err := memFs.Open(path)
			if err != nil {
				t.Fatalf("Failed to open file: %v", err)
			}
			defer file.Close()

			h1 := xxhash.New()
			if err := hashContent(file, h1); err != nil {
				t.Fatalf("hashContent() error = %v", err)
			}

			h2 := xxhash.New()
			h2.Write(tc.content)

			if !bytes.Equal(h1.Sum(nil), h2.Sum(nil)) {
				t.Errorf("hashContent() produced different hash than direct hashing")
			}
		})
	}
}

func TestHashKey(t *testing.T) {
	a := hashKey(xxhash.New(), "model:script", "script.app", "script", "/a/app.js")
	b := hashKey(xxhash.New(), "model:script", "script.app", "script", "/a/app.js")
	if a != b {
		t.Errorf("hashKey() not deterministic: %s != %s", a, b)
	}
	if len(a) != assetIDLength {
		t.Errorf("hashKey() length = %d, want %d", len(a), assetIDLength)
	}
	if !validAssetID(a) {
		t.Errorf("hashKey() = %q is not a valid asset id", a)
	}

	// Separators keep part boundaries significant.
	if hashKey(xxhash.New(), "ab", "c") == hashKey(xxhash.New(), "a", "bc") {
		t.Error("hashKey() ignores part boundaries")
	}

	// The hash is reset before use.
	h := xxhash.New()
	h.Write([]byte("leftover"))
	if got := hashKey(h, "x"); got != hashKey(xxhash.New(), "x") {
		t.Errorf("hashKey() did not reset the hash: %s", got)
	}
}

func TestValidAssetID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"0123456789abcdef", true},
		{"ABCDEFGHabcdefgh", true},
		{"0123456789abcde", false},
		{"0123456789abcdef0", false},
		{"0123456789abcde-", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := validAssetID(tt.id); got != tt.want {
			t.Errorf("validAssetID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
