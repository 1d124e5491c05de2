package datalog

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// WriteBytesToFile writes the passed bytes to filename so that readers see either the old file or the
// complete new one: the bytes go to a temporary file in the same directory, which is synced and renamed.
func WriteBytesToFile(bytes []byte, filename string) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "error creating log directory %s", dir)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(filename)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, os.Remove(f.Name()))
		}
	}()

	w := bufio.NewWriter(f)
	if _, err := w.Write(bytes); err != nil {
		return multierr.Combine(err, f.Close())
	}
	if err := w.Flush(); err != nil {
		return multierr.Combine(err, f.Close())
	}
	if err := f.Sync(); err != nil {
		return multierr.Combine(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), filename)
}
