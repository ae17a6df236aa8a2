package io_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	kio "github.com/opst/fieldarchive/pkg/utils/io"
)

func TestMD5File(t *testing.T) {
	type Then struct {
		sum  string
		size int64
	}
	for name, testcase := range map[string]struct {
		content []byte
		then    Then
	}{
		"a file with content": {
			content: []byte("test text to be hashed"),
			then:    Then{sum: "a21436eeedcb3a89a5c9b4513655048f", size: 22},
		},
		"an empty file": {
			content: nil,
			then:    Then{sum: "d41d8cd98f00b204e9800998ecf8427e", size: 0},
		},
		"a file larger than copy buffers": {
			content: bytes.Repeat([]byte{0}, 1<<20),
			then:    Then{sum: "b6d81b360a5672d80c27430f39153e2c", size: 1 << 20},
		},
	} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "file")
			if err := os.WriteFile(p, testcase.content, 0644); err != nil {
				t.Fatal(err)
			}

			sum, size, err := kio.MD5File(context.Background(), p)
			if err != nil {
				t.Fatal(err)
			}
			if sum != testcase.then.sum || size != testcase.then.size {
				t.Errorf(
					"(sum, size): got (%s, %d), want (%s, %d)",
					sum, size, testcase.then.sum, testcase.then.size,
				)
			}
		})
	}

	t.Run("it causes error for missing file", func(t *testing.T) {
		_, _, err := kio.MD5File(context.Background(), filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it stops when context is cancelled", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(p, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := kio.MD5File(ctx, p)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestContextReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := kio.ContextReader(ctx, bytes.NewReader([]byte("abcdef")))

	buf := make([]byte, 3)
	if n, err := r.Read(buf); err != nil || string(buf[:n]) != "abc" {
		t.Fatalf("first read: (%q, %v)", buf[:n], err)
	}
	cancel()
	if _, err := r.Read(buf); !errors.Is(err, context.Canceled) {
		t.Errorf("read after cancel: %v", err)
	}
	if _, err := io.ReadAll(r); !errors.Is(err, context.Canceled) {
		t.Errorf("read all after cancel: %v", err)
	}
}
