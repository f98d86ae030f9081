package cfg

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bronystylecrazy/ultraweave/inject"
)

func TestLoadDefaults(t *testing.T) {
	out, err := Load(WithNoEnv())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.Log.Level != "debug" {
		t.Fatalf("expected development default level, got %q", out.Log.Level)
	}
	if out.Registry.DiagnosticsLimit != inject.DefaultDiagnosticsLimit || !out.Registry.RebindOnStart {
		t.Fatalf("unexpected registry defaults: %+v", out.Registry)
	}
	if !out.Transform.Verify || out.VM.Verify {
		t.Fatalf("unexpected verify defaults: %+v %+v", out.Transform, out.VM)
	}
}

func TestLoadReadsFromEnv(t *testing.T) {
	t.Setenv("ULTRAWEAVE_LOG_LEVEL", "warn")
	t.Setenv("ULTRAWEAVE_LOG_DROP_FIELDS", "transform_id,type")
	t.Setenv("ULTRAWEAVE_REGISTRY_DIAGNOSTICS_LIMIT", "16")
	t.Setenv("ULTRAWEAVE_TRANSFORM_VERIFY", "false")

	out, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.Log.Level != "warn" {
		t.Fatalf("expected level from env, got %q", out.Log.Level)
	}
	if !reflect.DeepEqual(out.Log.DropFields, []string{"transform_id", "type"}) {
		t.Fatalf("expected drop fields from env, got %v", out.Log.DropFields)
	}
	if out.Registry.DiagnosticsLimit != 16 {
		t.Fatalf("expected limit from env, got %d", out.Registry.DiagnosticsLimit)
	}
	if out.Transform.Verify {
		t.Fatal("expected verify disabled from env")
	}
}

func TestLoadReadsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ultraweave.yaml")
	content := []byte("registry:\n  rebind_on_start: false\nvm:\n  max_depth: 64\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	out, err := Load(WithSourceFile(path), WithNoEnv())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.Registry.RebindOnStart || out.VM.MaxDepth != 64 {
		t.Fatalf("file values not applied: %+v %+v", out.Registry, out.VM)
	}
	if !out.Transform.Verify {
		t.Fatal("defaults should survive a partial file")
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Load(WithSourceFile(path), WithNoEnv()); err == nil {
		t.Fatal("expected an error for a required missing file")
	}
	if _, err := Load(WithSourceFile(path), WithOptional(), WithNoEnv()); err != nil {
		t.Fatalf("optional missing file should load defaults: %v", err)
	}
}

func TestLoadStripsByteOrderMark(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ultraweave.yaml")
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("log:\n  level: error\n")...)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	out, err := Load(WithSourceFile(path), WithNoEnv())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.Log.Level != "error" {
		t.Fatalf("expected level from file, got %q", out.Log.Level)
	}
}
