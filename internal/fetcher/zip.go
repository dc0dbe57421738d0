package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// WithExtractedFile extracts one entry of a ZIP archive into a scratch
// directory, calls fn with the extracted path and removes the scratch
// directory afterwards, whether extraction or fn succeeded or not.
// An empty entry name selects the archive's only file.
func WithExtractedFile(zipPath, entry string, fn func(path string) error) (err error) {
	scratch, err := os.MkdirTemp("", "dining-extract-*")
	if err != nil {
		return eris.Wrap(err, "zip: create scratch dir")
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			zap.L().Warn("zip: remove scratch dir", zap.String("dir", scratch), zap.Error(rmErr))
		}
	}()

	var path string
	if entry == "" {
		path, err = ExtractZIPSingle(zipPath, scratch)
	} else {
		path, err = ExtractZIPFile(zipPath, entry, scratch)
	}
	if err != nil {
		return err
	}

	return fn(path)
}

// ExtractZIPFile extracts a single file from a ZIP archive by name.
// Returns the path to the extracted file.
func ExtractZIPFile(zipPath, fileName, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.Name == fileName {
			return extractZIPEntry(f, destDir)
		}
	}

	return "", eris.Errorf("zip: file %q not found in archive", fileName)
}

// ExtractZIPSingle extracts the single file from a ZIP that contains exactly one file.
func ExtractZIPSingle(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}

	if len(files) != 1 {
		return "", eris.Errorf("zip: expected exactly 1 file, got %d", len(files))
	}

	return extractZIPEntry(files[0], destDir)
}

// extractZIPEntry writes a single file entry into destDir.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	// Reject zip slip.
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}
	if f.FileInfo().IsDir() {
		return "", eris.Errorf("zip: entry %q is a directory", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}
