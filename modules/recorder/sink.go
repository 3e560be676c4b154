package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DirSink saves recordings as files in a directory.
type DirSink struct {
	dir    string
	logger *slog.Logger
}

func NewDirSink(dir string, logger *slog.Logger) *DirSink {
	return &DirSink{dir: dir, logger: logger}
}

// safeName keeps a station name from escaping the directory.
var safeName = strings.NewReplacer("/", "_", string(os.PathSeparator), "_", "\x00", "_")

// Deliver writes the recording through a temp file which is then renamed into
// place, so a partially written file never carries the final name.
func (d *DirSink) Deliver(ctx context.Context, rec *Recording) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, os.ModePerm); err != nil {
		return fmt.Errorf("error creating recording directory: %w", err)
	}

	destPath := filepath.Join(d.dir, safeName.Replace(rec.Name))

	f, err := os.CreateTemp(d.dir, "*."+extension(rec.ContentType)+".tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tempPath := f.Name()

	if _, err := f.Write(rec.Data); err != nil {
		f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("error writing recording: %w", err)
	}
	if err := f.Sync(); err != nil {
		d.logger.Error("error syncing file", "err", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("error closing recording: %w", err)
	}

	return d.commitTempFile(tempPath, destPath)
}

// commitTempFile renames tempPath to destPath only if dest doesn't exist or
// the temp file is larger, so a longer recording saved under the same name
// within the same millisecond is never replaced by a shorter one.
func (d *DirSink) commitTempFile(tempPath, destPath string) error {
	tempInfo, err := os.Stat(tempPath)
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("error stating temp file: %w", err)
	}

	destInfo, err := os.Stat(destPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		_ = os.Remove(tempPath)
		return fmt.Errorf("error stating dest file: %w", err)
	case tempInfo.Size() <= destInfo.Size():
		_ = os.Remove(tempPath)
		d.logger.Debug("discarded shorter recording", "path", destPath, "temp_size", tempInfo.Size(), "existing_size", destInfo.Size())
		return nil
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("error renaming temp to dest: %w", err)
	}

	d.logger.Info("saved recording", "path", destPath, "size", tempInfo.Size())
	return nil
}
