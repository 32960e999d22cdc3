package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qbank-import-service/internal/domain"
)

func TestImportCommandInMemory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("import:\n  secret: cli-secret\nlog:\n  level: error\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("IMPORT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(`[
		{"source_id":"q1","topic":"Алгебра","difficulty":"easy","prompt":"2+2=?","correct_answer":"4"},
		{"topic":"","prompt":"x","correct_answer":"y"}
	]`))
	cmd.SetArgs([]string{"--config", cfgPath, "import", "-"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var summary domain.ImportSummary
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if summary.Total != 2 || summary.Inserted != 1 || len(summary.Errors) != 1 || summary.Errors[0].Index != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestImportCommandRejectsWrongSecret(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	recordsPath := filepath.Join(dir, "records.json")
	_ = os.WriteFile(cfgPath, []byte("import:\n  secret: cli-secret\n"), 0o600)
	_ = os.WriteFile(recordsPath, []byte(`[{"topic":"t","prompt":"p","correct_answer":"a"}]`), 0o600)
	t.Setenv("IMPORT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "import", "--secret", "wrong", recordsPath})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}
