// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// skippedSourceEntries never belong in the image.
var skippedSourceEntries = []string{".git", "__pycache__", ".ipynb_checkpoints", ".venv"}

// stageContext creates a temporary build context under root holding the
// environment manifest, the application source and the Dockerfile. The
// returned cleanup removes it and is safe to call on every path.
func stageContext(root string, m BuildManifest, dockerfile string) (dir string, cleanup func(), err error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("failed to create staging root: %w", err)
	}

	dir, err = os.MkdirTemp(root, "cadstart-build-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create build context: %w", err)
	}
	cleanup = func() {
		_ = os.RemoveAll(dir) // Temp dir; removal error non-critical
	}

	if err := copyFile(m.EnvironmentManifestFile, filepath.Join(dir, stagedEnvironmentFile)); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to stage environment manifest: %w", err)
	}

	if err := copyDir(m.SourceDir, filepath.Join(dir, stagedSourceDir), dir); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to stage application source: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	return dir, cleanup, nil
}

// copyFile copies a regular file from src to dst, keeping its mode.
func copyFile(src, dst string) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }() // Read-only file; close error non-critical

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dstFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// copyDir copies the tree at src to dst. Symlinks are skipped, as are the
// entries in skippedSourceEntries and the directory exclude, which keeps a
// staging root inside the source tree from copying itself.
func copyDir(src, dst, exclude string) error {
	excludeAbs, _ := filepath.Abs(exclude)

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != src && slices.Contains(skippedSourceEntries, d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if abs, _ := filepath.Abs(p); d.IsDir() && abs == excludeAbs {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			return copyFile(p, target)
		default:
			return nil
		}
	})
}
