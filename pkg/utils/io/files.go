package io

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CreateAll creates or truncates the file at name, making missing parent directories with dmode.
//
// Existing directories keep their mode.
func CreateAll(name string, fmode, dmode fs.FileMode) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(name), dmode); err != nil {
		return nil, err
	}
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fmode)
}

// DirCopy copies regular files in the tree of src into dst.
//
// Relative paths and permissions are kept. Files only in dst are left.
func DirCopy(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(p, filepath.Join(dst, rel), info.Mode().Perm())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := CreateAll(dst, mode, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
