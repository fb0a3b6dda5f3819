package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		file    string
		want    int64
		wantErr bool
	}{
		{"001_init.up.sql", 1, false},
		{"002_claim_challenges.up.sql", 2, false},
		{"010_subscriptions.up.sql", 10, false},
		{"init.sql", 0, true},
		{"x_init.up.sql", 0, true},
	}
	for _, tc := range cases {
		got, err := parseVersion(tc.file)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseVersion(%q): expected error", tc.file)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseVersion(%q): %v", tc.file, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseVersion(%q) = %d, want %d", tc.file, got, tc.want)
		}
	}
}

func TestPendingFiles_sortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.up.sql", "001_a.up.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- noop"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_nested.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := pendingFiles(dir)
	if err != nil {
		t.Fatalf("pendingFiles: %v", err)
	}
	want := []string{"001_a.up.sql", "002_b.up.sql"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}
