package io

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// MD5File streams the file at path and returns its MD5 checksum in lower hex,
// with the number of bytes read.
//
// Reading stops with ctx.Err() once ctx is done.
func MD5File(ctx context.Context, path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := md5.New()
	n, err := io.Copy(h, ContextReader(ctx, f))
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ContextReader reads r until ctx is done.
func ContextReader(ctx context.Context, r io.Reader) io.Reader {
	return readerFunc(func(p []byte) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return r.Read(p)
	})
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
