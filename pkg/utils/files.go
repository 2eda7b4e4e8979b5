package utils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// OutputPath swaps the extension of input for ext, keeping the
// directory: prog.ven becomes prog.c.
func OutputPath(input, ext string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + ext
}

// WriteIfChanged writes data to path unless the file already holds
// content with the given BLAKE3 digest, so downstream build tools keep
// their timestamps. digest must be blake3.Sum256(data). It reports
// whether the file was written.
func WriteIfChanged(path string, data []byte, digest [32]byte) (bool, error) {
	old, err := os.ReadFile(path)
	switch {
	case err == nil:
		if blake3.Sum256(old) == digest {
			return false, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
