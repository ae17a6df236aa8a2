package io_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	kio "github.com/opst/fieldarchive/pkg/utils/io"
)

func withoutUmask(t *testing.T) {
	t.Helper()
	umask := syscall.Umask(0)
	t.Cleanup(func() { syscall.Umask(umask) })
}

func mode(t *testing.T, p string) fs.FileMode {
	t.Helper()
	s, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	return s.Mode()
}

func TestCreateAll(t *testing.T) {
	t.Run("it creates missing directories with the directory mode", func(t *testing.T) {
		withoutUmask(t)
		root := t.TempDir()

		f, err := kio.CreateAll(filepath.Join(root, "foo", "bar", "file"), 0700, 0707)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		for _, dir := range []string{"foo", filepath.Join("foo", "bar")} {
			if m := mode(t, filepath.Join(root, dir)); !m.IsDir() || m.Perm() != 0707 {
				t.Errorf("%s: mode %s", dir, m)
			}
		}
		if m := mode(t, filepath.Join(root, "foo", "bar", "file")); !m.IsRegular() || m.Perm() != 0700 {
			t.Errorf("file: mode %s", m)
		}
	})

	t.Run("it keeps mode of existing directories", func(t *testing.T) {
		withoutUmask(t)
		root := t.TempDir()
		if err := os.Mkdir(filepath.Join(root, "foo"), 0755); err != nil {
			t.Fatal(err)
		}

		f, err := kio.CreateAll(filepath.Join(root, "foo", "file"), 0600, 0700)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		if m := mode(t, filepath.Join(root, "foo")); m.Perm() != 0755 {
			t.Errorf("foo: mode %s", m)
		}
	})

	t.Run("it truncates existing file", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(p, []byte("old content"), 0644); err != nil {
			t.Fatal(err)
		}

		f, err := kio.CreateAll(p, 0644, 0755)
		if err != nil {
			t.Fatal(err)
		}
		f.Close()

		if b, err := os.ReadFile(p); err != nil || len(b) != 0 {
			t.Errorf("content: (%q, %v)", b, err)
		}
	})
}

func TestDirCopy(t *testing.T) {
	withoutUmask(t)
	src := t.TempDir()
	dst := t.TempDir()

	files := map[string]struct {
		content string
		mode    fs.FileMode
	}{
		filepath.Join("1", "01_tables.sql"): {content: "create table a;", mode: 0644},
		filepath.Join("2", "01_more.sql"):   {content: "create table b;", mode: 0600},
		"README":                            {content: "schema", mode: 0640},
	}
	for name, f := range files {
		p := filepath.Join(src, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(f.content), f.mode); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dst, "kept"), []byte("kept"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := kio.DirCopy(src, dst); err != nil {
		t.Fatal(err)
	}

	for name, f := range files {
		p := filepath.Join(dst, name)
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(b) != f.content {
			t.Errorf("%s: content %q", name, b)
		}
		if m := mode(t, p); m.Perm() != f.mode {
			t.Errorf("%s: mode %s", name, m)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "kept")); err != nil {
		t.Errorf("file only in destination is removed: %v", err)
	}
}
