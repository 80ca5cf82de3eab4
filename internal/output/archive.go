package output

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// Package zips the csv files of processedDir into
// <parent of processedDir>/<appID>_<name of parent>.zip and returns its path.
func Package(processedDir, appID string) (string, error) {
	files, err := filepath.Glob(filepath.Join(processedDir, "*.csv"))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no csv files in %s", processedDir)
	}
	slices.Sort(files)

	runDir := filepath.Dir(filepath.Clean(processedDir))
	archive := filepath.Join(runDir, fmt.Sprintf("%s_%s.zip", appID, filepath.Base(runDir)))
	f, err := os.Create(archive)
	if err != nil {
		return "", err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, p := range files {
		if err := addFile(zw, p); err != nil {
			zw.Close()
			return "", fmt.Errorf("failed to add %s to %s: %w", p, archive, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return archive, nil
}

func addFile(zw *zip.Writer, p string) error {
	src, err := os.Open(p)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := zw.Create(filepath.Base(p))
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
