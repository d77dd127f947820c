/*
 * fileset.go, part of diadem.
 *
 *
 * Copyright 2024 The diadem authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package fileset moves the files of the stages around: it checks that the
//outputs a stage promises are there, copies them between stage directories and
//packs them in zip archives. Patterns are globs relative to a directory, and can
//use "**" to match any number of directories.
package fileset

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Glob returns the paths, relative to dir and sorted, that match pattern.
// An absolute pattern is matched as it is and gives absolute paths.
func Glob(dir, pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return doublestar.FilepathGlob(pattern)
	}
	p := path.Clean(filepath.ToSlash(pattern))
	if p == "." {
		return nil, nil
	}
	if strings.HasPrefix(p, "../") {
		//DirFS can't leave dir.
		return doublestar.FilepathGlob(filepath.Join(dir, pattern))
	}
	matches, err := doublestar.Glob(os.DirFS(dir), p)
	if err != nil {
		return nil, &Error{fmt.Sprintf("bad pattern %q: %s", pattern, err), dir, []string{"Glob"}, true}
	}
	for i, m := range matches {
		matches[i] = filepath.FromSlash(m)
	}
	sort.Strings(matches)
	return matches, nil
}

func abs(dir, match string) string {
	if filepath.IsAbs(match) {
		return match
	}
	return filepath.Join(dir, match)
}

// CheckExist checks that every pattern matches at least one path in dir.
// If not, it returns a *MissingError with all the patterns that failed.
func CheckExist(dir string, patterns []string, description string) error {
	var missing []string
	for _, p := range patterns {
		m, err := Glob(dir, p)
		if err != nil {
			return errDecorate(err, "CheckExist")
		}
		if len(m) == 0 {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		if description == "" {
			description = "file"
		}
		return &MissingError{Description: description, Dir: dir, Patterns: missing, deco: []string{"CheckExist"}}
	}
	return nil
}

// CopyMatches creates dest and copies into it every path in dir that matches one of
// patterns. Files keep their base name, and directories are copied with their
// contents. If strict is true, a pattern that matches nothing is an error. Otherwise
// such patterns are skipped, and returned.
func CopyMatches(dir string, patterns []string, dest string, strict bool) ([]string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, &Error{err.Error(), dest, []string{"CopyMatches"}, true}
	}
	var skipped []string
	for _, p := range patterns {
		matches, err := Glob(dir, p)
		if err != nil {
			return skipped, errDecorate(err, "CopyMatches")
		}
		if len(matches) == 0 {
			if strict {
				return skipped, &MissingError{Description: "file", Dir: dir, Patterns: []string{p}, deco: []string{"CopyMatches"}}
			}
			skipped = append(skipped, p)
			continue
		}
		for _, m := range matches {
			src := abs(dir, m)
			dst := filepath.Join(dest, filepath.Base(m))
			fi, err := os.Stat(src)
			if err != nil {
				return skipped, &Error{err.Error(), src, []string{"CopyMatches"}, true}
			}
			if fi.IsDir() {
				err = CopyTree(src, dst)
			} else {
				err = CopyFile(src, dst)
			}
			if err != nil {
				return skipped, errDecorate(err, "CopyMatches")
			}
		}
	}
	return skipped, nil
}

// Fetch copies the regular files of fromDir, not its subdirectories, into toDir.
// Symlinks are followed, and broken ones skipped.
func Fetch(fromDir, toDir string) error {
	entries, err := os.ReadDir(fromDir)
	if err != nil {
		return &Error{err.Error(), fromDir, []string{"Fetch"}, true}
	}
	for _, e := range entries {
		src := filepath.Join(fromDir, e.Name())
		if fi, err := os.Stat(src); err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if err := CopyFile(src, filepath.Join(toDir, e.Name())); err != nil {
			return errDecorate(err, "Fetch")
		}
	}
	return nil
}

// CopyFile copies the file src to dst, keeping its permissions.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return &Error{err.Error(), src, []string{"CopyFile"}, true}
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return &Error{err.Error(), src, []string{"CopyFile"}, true}
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return &Error{err.Error(), dst, []string{"CopyFile"}, true}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &Error{err.Error(), dst, []string{"CopyFile"}, true}
	}
	if err := out.Close(); err != nil {
		return &Error{err.Error(), dst, []string{"CopyFile"}, true}
	}
	return nil
}

// CopyTree copies the directory src into dst. Directories that already exist in dst
// are merged, and files are overwritten.
func CopyTree(src, dst string) error {
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return CopyFile(p, target)
		}
		return nil
	})
	if err != nil {
		return errDecorate(Wrap(err, src), "CopyTree")
	}
	return nil
}

// Wrap turns a plain error about file into an Error. Errors from this package are
// returned as they are.
func Wrap(err error, file string) error {
	switch err.(type) {
	case *Error, *MissingError:
		return err
	}
	return &Error{err.Error(), file, nil, true}
}

// RenameSingle renames the only path in dir that matches pattern to newName, within
// the directory of that path. Zero or several matches are an error.
func RenameSingle(dir, pattern, newName string) (string, error) {
	matches, err := Glob(dir, pattern)
	if err != nil {
		return "", errDecorate(err, "RenameSingle")
	}
	if len(matches) != 1 {
		return "", &Error{fmt.Sprintf("expected exactly one file matching %q, found %d", pattern, len(matches)), dir, []string{"RenameSingle"}, true}
	}
	old := abs(dir, matches[0])
	target := filepath.Join(filepath.Dir(old), newName)
	if err := os.Rename(old, target); err != nil {
		return "", &Error{err.Error(), old, []string{"RenameSingle"}, true}
	}
	return target, nil
}

// List logs every entry of dir with its type and size.
func List(dir string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("Failed to list directory contents", zap.String("dir", dir), zap.Error(err))
		return &Error{err.Error(), dir, []string{"List"}, false}
	}
	for _, e := range entries {
		itemType := "file"
		if e.IsDir() {
			itemType = "directory"
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		logger.Info("Found item: "+e.Name(), zap.String("item_type", itemType), zap.Int64("size", size))
	}
	return nil
}

// WriteHostfile writes a hostfile for mpirun with host repeated n times, one per line.
func WriteHostfile(path, host string, n int) error {
	if n < 1 {
		n = 1
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(host)
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return &Error{err.Error(), path, []string{"WriteHostfile"}, true}
	}
	return nil
}

// RemoveMatches removes every file in dir that matches one of patterns.
// Directories are left alone.
func RemoveMatches(dir string, patterns ...string) error {
	for _, p := range patterns {
		matches, err := Glob(dir, p)
		if err != nil {
			return errDecorate(err, "RemoveMatches")
		}
		for _, m := range matches {
			target := abs(dir, m)
			fi, err := os.Lstat(target)
			if err != nil || fi.IsDir() {
				continue
			}
			if err := os.Remove(target); err != nil {
				return &Error{err.Error(), m, []string{"RemoveMatches"}, true}
			}
		}
	}
	return nil
}
