package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_MissingFileIsNotAnError(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
}

func TestLoadFile_SetsAndPreservesVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n" +
		"export COCO_DOTENV_A=one\n" +
		"COCO_DOTENV_B=\"quoted value\"\n" +
		"COCO_DOTENV_C='single'\n" +
		"COCO_DOTENV_EXISTING=from-file\n" +
		"not a pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("COCO_DOTENV_EXISTING", "from-env")
	for _, key := range []string{"COCO_DOTENV_A", "COCO_DOTENV_B", "COCO_DOTENV_C"} {
		os.Unsetenv(key)
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if got := os.Getenv("COCO_DOTENV_A"); got != "one" {
		t.Fatalf("A=%q", got)
	}
	if got := os.Getenv("COCO_DOTENV_B"); got != "quoted value" {
		t.Fatalf("B=%q", got)
	}
	if got := os.Getenv("COCO_DOTENV_C"); got != "single" {
		t.Fatalf("C=%q", got)
	}
	if got := os.Getenv("COCO_DOTENV_EXISTING"); got != "from-env" {
		t.Fatalf("existing variable overwritten: %q", got)
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		line    string
		key     string
		val     string
		ok      bool
	}{
		{"A=1", "A", "1", true},
		{"export B=2", "B", "2", true},
		{"  C = spaced  ", "C", "spaced", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"=orphan", "", "", false},
		{"noequals", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseLine(tc.line)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Fatalf("parseLine(%q)=%q,%q,%v want %q,%q,%v", tc.line, key, val, ok, tc.key, tc.val, tc.ok)
		}
	}
}
