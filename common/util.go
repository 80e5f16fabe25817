package common

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CreateDirectory makes path and its parents and returns it absolute.
func CreateDirectory(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get absolute path for '%s'", path)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create directory '%s'", absPath)
	}
	return absPath, nil
}

// FileOrDirectorySize is the size of a file, or the total size of the files
// under a directory.
func FileOrDirectorySize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		zap.L().Warn("cannot access path", zap.String("path", path), zap.Error(err))
		return 0
	}

	if !info.IsDir() {
		return info.Size()
	}

	var totalSize int64
	filepath.WalkDir(path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			zap.L().Warn("cannot access path", zap.String("path", path), zap.Error(err))
			return nil
		} else if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				zap.L().Warn("cannot access path", zap.String("path", path), zap.Error(err))
			} else {
				totalSize += info.Size()
			}
		}
		return nil
	})
	return totalSize
}
