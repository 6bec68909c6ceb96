package stages

import (
	"os"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/sitebuild/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCompileStylesSkipsPartials(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "styles", "main.scss"), "body {}")
	writeFile(t, filepath.Join(src, "styles", "_partial.scss"), "$x: 1;")

	// "true" exits 0 without producing output; we only assert routing here.
	f := NewFrontend(config.FrontendConfig{
		StylesCommand: []string{"true"},
		StylesDir:     "styles",
	}, src, t.TempDir())

	result, err := f.CompileStyles(t.Context())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.Compiled != 1 {
		t.Errorf("compiled = %d, want 1 (partials excluded)", result.Compiled)
	}
	if result.Soft() {
		t.Errorf("unexpected soft errors: %v", result.SoftErrors)
	}
}

func TestCompileStylesTransformFailureIsSoft(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "styles", "broken.scss"), "body {")

	f := NewFrontend(config.FrontendConfig{
		StylesCommand: []string{"false"},
		StylesDir:     "styles",
	}, src, t.TempDir())

	result, err := f.CompileStyles(t.Context())
	if err != nil {
		t.Fatalf("transform failure must not fail the stage: %v", err)
	}
	if !result.Soft() || len(result.SoftErrors) != 1 {
		t.Errorf("soft errors = %v, want exactly one", result.SoftErrors)
	}
}

func TestCompileStylesMissingCompilerIsHardFailure(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "styles", "main.scss"), "body {}")

	f := NewFrontend(config.FrontendConfig{
		StylesCommand: []string{"definitely-not-a-real-compiler-binary"},
		StylesDir:     "styles",
	}, src, t.TempDir())

	if _, err := f.CompileStyles(t.Context()); err == nil {
		t.Fatal("expected hard failure for missing compiler")
	}
}

func TestCopyTemplatesAndIcons(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(src, "templates", "base.html"), "<html/>")
	writeFile(t, filepath.Join(src, "icons", "16", "ok.svg"), "<svg/>")

	f := NewFrontend(config.FrontendConfig{
		TemplatesDir: "templates",
		IconsDir:     "icons",
	}, src, out)

	if err := f.CopyTemplates(t.Context()); err != nil {
		t.Fatalf("copy templates: %v", err)
	}
	if err := f.CopyIcons(t.Context()); err != nil {
		t.Fatalf("copy icons: %v", err)
	}

	for _, rel := range []string{"templates/base.html", "icons/16/ok.svg"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(rel))); err != nil {
			t.Errorf("%s missing: %v", rel, err)
		}
	}
}

func TestCopyAbsentTreeIsNoop(t *testing.T) {
	f := NewFrontend(config.FrontendConfig{TemplatesDir: "nope"}, t.TempDir(), t.TempDir())
	if err := f.CopyTemplates(t.Context()); err != nil {
		t.Errorf("absent tree must be a no-op: %v", err)
	}
}

func TestCleanRemovesRoots(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "out", "f.txt"), "x")

	if err := Clean(t.Context(), filepath.Join(root, "out"), filepath.Join(root, "absent")); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "out")); !os.IsNotExist(err) {
		t.Error("output tree not removed")
	}
}
