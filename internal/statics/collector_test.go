package statics

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/sitebuild/internal/errors"
)

func seq(entries ...Entry) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archive %s: %v", path, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive %s: %v", path, err)
	}
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open member %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read member %s: %v", f.Name, err)
		}
		out[f.Name] = string(content)
	}
	return out
}

func TestCollectPassthroughOnly(t *testing.T) {
	dest := t.TempDir()
	err := Collect(seq(
		Entry{Path: "css", IsDir: true},
		Entry{Path: "css/main.css", Contents: []byte("body{}")},
		Entry{Path: "logo.svg", Contents: []byte("<svg/>")},
	), dest)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	for rel, want := range map[string]string{"css/main.css": "body{}", "logo.svg": "<svg/>"} {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("passthrough %s missing: %v", rel, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", rel, data, want)
		}
	}

	// Zero archives: nothing named *.zip in the destination.
	matches, _ := filepath.Glob(filepath.Join(dest, "*.zip"))
	if len(matches) != 0 {
		t.Errorf("unexpected archives: %v", matches)
	}
}

func TestCollectBundlesArchiveMembers(t *testing.T) {
	dest := t.TempDir()
	err := Collect(seq(
		Entry{Path: "a.zip", IsDir: true},
		Entry{Path: "a.zip/x.txt", Contents: []byte("hi")},
		Entry{Path: "a.zip/y.txt", Contents: []byte("yo")},
	), dest)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	members := readZip(t, filepath.Join(dest, "a.zip"))
	if len(members) != 2 || members["x.txt"] != "hi" || members["y.txt"] != "yo" {
		t.Errorf("members = %v", members)
	}

	// The placeholder directory must not be materialized, and nothing else
	// may be written outside the archive.
	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.zip" || entries[0].IsDir() {
		t.Errorf("destination entries = %v", entries)
	}
}

func TestCollectNestedArchiveMembersKeepInnerPaths(t *testing.T) {
	dest := t.TempDir()
	err := Collect(seq(
		Entry{Path: "assets/icons.zip", IsDir: true},
		Entry{Path: "assets/icons.zip/16", IsDir: true},
		Entry{Path: "assets/icons.zip/16/ok.svg", Contents: []byte("a")},
		Entry{Path: "assets/icons.zip/32/ok.svg", Contents: []byte("b")},
		Entry{Path: "assets/readme.txt", Contents: []byte("plain")},
	), dest)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	members := readZip(t, filepath.Join(dest, "assets", "icons.zip"))
	if members["16/ok.svg"] != "a" || members["32/ok.svg"] != "b" {
		t.Errorf("members = %v", members)
	}
	if _, err := os.Stat(filepath.Join(dest, "assets", "readme.txt")); err != nil {
		t.Errorf("sibling passthrough lost: %v", err)
	}
}

func TestCollectEmptyPlaceholderYieldsEmptyArchive(t *testing.T) {
	dest := t.TempDir()
	err := Collect(seq(Entry{Path: "empty.zip", IsDir: true}), dest)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	members := readZip(t, filepath.Join(dest, "empty.zip"))
	if len(members) != 0 {
		t.Errorf("expected empty archive, got %v", members)
	}
}

func TestCollectArchiveRootEntryAddsNoMember(t *testing.T) {
	// A file entry whose path is exactly the marker plus a trailing slash
	// remainder contributes no member; archives need no explicit root entry.
	dest := t.TempDir()
	err := Collect(seq(
		Entry{Path: "a.zip/", IsDir: false, Contents: []byte("ignored")},
		Entry{Path: "a.zip/real.txt", Contents: []byte("kept")},
	), dest)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	members := readZip(t, filepath.Join(dest, "a.zip"))
	if len(members) != 1 || members["real.txt"] != "kept" {
		t.Errorf("members = %v", members)
	}
}

func TestCollectPlainZipFilePassesThrough(t *testing.T) {
	// A regular file ending in .zip is not a placeholder; it is copied
	// verbatim like any other passthrough entry.
	dest := t.TempDir()
	payload := []byte{0x50, 0x4b, 0x05, 0x06}
	err := Collect(seq(
		Entry{Path: "prebuilt.zip", Contents: payload},
		Entry{Path: "notes.zip.txt", Contents: []byte("not a member")},
	), dest)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "prebuilt.zip"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("prebuilt archive bytes altered")
	}
	// The marker only matters on a segment boundary.
	if _, err := os.Stat(filepath.Join(dest, "notes.zip.txt")); err != nil {
		t.Errorf("marker-adjacent file lost: %v", err)
	}
}

func TestCollectMemberOrderWithinArchive(t *testing.T) {
	dest := t.TempDir()
	var entries []Entry
	entries = append(entries, Entry{Path: "ord.zip", IsDir: true})
	for i := 0; i < 20; i++ {
		entries = append(entries, Entry{
			Path:     fmt.Sprintf("ord.zip/f%02d.txt", i),
			Contents: []byte{byte(i)},
		})
	}
	if err := Collect(seq(entries...), dest); err != nil {
		t.Fatalf("collect: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dest, "ord.zip"))
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i, f := range zr.File {
		want := fmt.Sprintf("f%02d.txt", i)
		if f.Name != want {
			t.Fatalf("member %d = %s, want %s (source order violated)", i, f.Name, want)
		}
	}
}

func TestCollectFlushWriteErrorSurfacesAndSiblingsFinish(t *testing.T) {
	dest := t.TempDir()
	// Occupy one archive's target path with a directory so its flush fails.
	if err := os.MkdirAll(filepath.Join(dest, "bad.zip"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	err := Collect(seq(
		Entry{Path: "bad.zip", IsDir: true},
		Entry{Path: "bad.zip/x.txt", Contents: []byte("doomed")},
		Entry{Path: "good.zip", IsDir: true},
		Entry{Path: "good.zip/y.txt", Contents: []byte("kept")},
	), dest)
	if err == nil {
		t.Fatal("expected flush write error to surface")
	}
	if !errors.IsCategory(err, errors.CategoryWrite) {
		t.Errorf("category = %s, want write", errors.GetCategory(err))
	}

	// The failing flush must not take the sibling archive down with it.
	members := readZip(t, filepath.Join(dest, "good.zip"))
	if len(members) != 1 || members["y.txt"] != "kept" {
		t.Errorf("sibling archive members = %v", members)
	}
}

func TestCollectSourceErrorStopsRun(t *testing.T) {
	failing := func(yield func(Entry, error) bool) {
		if !yield(Entry{Path: "ok.txt", Contents: []byte("x")}, nil) {
			return
		}
		yield(Entry{}, os.ErrPermission)
	}
	if err := Collect(failing, t.TempDir()); err == nil {
		t.Fatal("expected source error to surface")
	}
}

func TestWalkRootFeedsCollect(t *testing.T) {
	src := t.TempDir()
	mustWrite := func(rel, content string) {
		path := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mustWrite("fonts.zip/mono.woff2", "font-bytes")
	mustWrite("plain/site.js", "js")

	dest := t.TempDir()
	if err := Collect(WalkRoot(src), dest); err != nil {
		t.Fatalf("collect: %v", err)
	}

	members := readZip(t, filepath.Join(dest, "fonts.zip"))
	if members["mono.woff2"] != "font-bytes" {
		t.Errorf("members = %v", members)
	}
	if _, err := os.Stat(filepath.Join(dest, "plain", "site.js")); err != nil {
		t.Errorf("passthrough lost: %v", err)
	}
}
