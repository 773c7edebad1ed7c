package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// countingWriter tracks how many bytes went through to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Assemble writes header, bitmaps (in header offset order) and the G-code
// body to w. The body is written as-is.
func Assemble(w io.Writer, header []byte, bitmaps []RawBitmap, body []byte) (int64, error) {
	want := int64(len(header) + len(body))
	for _, b := range bitmaps {
		want += int64(len(b.Data))
	}

	cw := &countingWriter{w: w}
	bw := bufio.NewWriterSize(cw, 64*1024)
	if _, err := bw.Write(header); err != nil {
		return cw.n, errors.Wrap(err, "write header")
	}
	for i, b := range bitmaps {
		if _, err := bw.Write(b.Data); err != nil {
			return cw.n, errors.Wrapf(err, "write bitmap %d", i)
		}
	}
	if _, err := bw.Write(body); err != nil {
		return cw.n, errors.Wrap(err, "write gcode body")
	}
	if err := bw.Flush(); err != nil {
		return cw.n, errors.Wrap(err, "flush")
	}
	if cw.n != want {
		return cw.n, fmt.Errorf("wrote %d bytes, expected %d", cw.n, want)
	}
	return cw.n, nil
}

// WriteFileAtomic writes through a temporary file in the destination
// directory and renames it over path once fn succeeded and the data is
// synced. On any failure the temporary file is removed and path is left
// untouched. An existing path keeps its permission bits; perm applies to new
// files. Errors are OutputWriteError.
func WriteFileAtomic(path string, perm os.FileMode, fn func(io.Writer) error) (err error) {
	fail := func(e error) error { return newConvertError(OutputWriteError, path, 0, e) }

	if st, statErr := os.Stat(path); statErr == nil && st.Mode().IsRegular() {
		perm = st.Mode().Perm()
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = fn(tmp); err != nil {
		return fail(err)
	}
	if err = tmp.Sync(); err != nil {
		return fail(errors.Wrap(err, "sync"))
	}
	if err = tmp.Close(); err != nil {
		return fail(errors.Wrap(err, "close"))
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fail(errors.Wrap(err, "chmod"))
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fail(errors.Wrap(err, "rename"))
	}
	return nil
}
