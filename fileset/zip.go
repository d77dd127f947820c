/*
 * zip.go, part of diadem.
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

package fileset

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ZipPatterns writes to zipPath a deflate archive with every path in dir that
// matches one of patterns. Matched directories are added with all their files.
// Names in the archive are relative to the directory part of the pattern that
// matched them. It returns the number of files archived. Patterns that match
// nothing are ignored.
func ZipPatterns(dir string, patterns []string, zipPath string) (int, error) {
	f, err := os.Create(zipPath)
	if err != nil {
		return 0, &Error{err.Error(), zipPath, []string{"ZipPatterns"}, true}
	}
	zw := zip.NewWriter(f)
	n := 0
	for _, p := range patterns {
		matches, err := Glob(dir, p)
		if err != nil {
			zw.Close()
			f.Close()
			return n, errDecorate(err, "ZipPatterns")
		}
		base := path.Dir(path.Clean(filepath.ToSlash(p)))
		for _, m := range matches {
			name := archiveName(base, filepath.ToSlash(m))
			c, err := addPath(zw, abs(dir, m), name)
			n += c
			if err != nil {
				zw.Close()
				f.Close()
				return n, errDecorate(Wrap(err, m), "ZipPatterns")
			}
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return n, &Error{err.Error(), zipPath, []string{"ZipPatterns"}, true}
	}
	if err := f.Close(); err != nil {
		return n, &Error{err.Error(), zipPath, []string{"ZipPatterns"}, true}
	}
	return n, nil
}

//archiveName returns match relative to base, or match itself when it is not under base.
func archiveName(base, match string) string {
	if base == "." || base == "" {
		return match
	}
	if strings.HasPrefix(match, base+"/") {
		return strings.TrimPrefix(match, base+"/")
	}
	return path.Base(match)
}

// ZipDir writes to zipPath a deflate archive of the tree under dir, with names
// relative to dir.
func ZipDir(dir, zipPath string) (int, error) {
	f, err := os.Create(zipPath)
	if err != nil {
		return 0, &Error{err.Error(), zipPath, []string{"ZipDir"}, true}
	}
	zw := zip.NewWriter(f)
	n := 0
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		n++
		return addFile(zw, p, filepath.ToSlash(rel))
	})
	if err != nil {
		zw.Close()
		f.Close()
		return n, errDecorate(Wrap(err, dir), "ZipDir")
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return n, &Error{err.Error(), zipPath, []string{"ZipDir"}, true}
	}
	if err := f.Close(); err != nil {
		return n, &Error{err.Error(), zipPath, []string{"ZipDir"}, true}
	}
	return n, nil
}

//addPath adds the file p, or all the files under the directory p, with names starting at name.
func addPath(zw *zip.Writer, p, name string) (int, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return 0, err
	}
	if !fi.IsDir() {
		return 1, addFile(zw, p, name)
	}
	n := 0
	err = filepath.WalkDir(p, func(q string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(p, q)
		if err != nil {
			return err
		}
		n++
		return addFile(zw, q, path.Join(name, filepath.ToSlash(rel)))
	})
	return n, err
}

func addFile(zw *zip.Writer, p, name string) error {
	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// Unzip extracts the archive zipPath into dest. Entries that would land outside
// dest make the whole extraction fail before anything is written.
func Unzip(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return &Error{err.Error(), zipPath, []string{"Unzip"}, true}
	}
	defer r.Close()
	root, err := filepath.Abs(dest)
	if err != nil {
		return &Error{err.Error(), dest, []string{"Unzip"}, true}
	}
	for _, zf := range r.File {
		target := filepath.Join(root, filepath.FromSlash(zf.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return &Error{fmt.Sprintf("entry %q is outside the destination", zf.Name), zipPath, []string{"Unzip"}, true}
		}
	}
	for _, zf := range r.File {
		target := filepath.Join(root, filepath.FromSlash(zf.Name))
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &Error{err.Error(), target, []string{"Unzip"}, true}
			}
			continue
		}
		if err := extract(zf, target); err != nil {
			return &Error{err.Error(), zf.Name, []string{"Unzip"}, true}
		}
	}
	return nil
}

func extract(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	mode := zf.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ZipNames returns the names of the entries in the archive zipPath.
func ZipNames(zipPath string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, &Error{err.Error(), zipPath, []string{"ZipNames"}, true}
	}
	defer r.Close()
	names := make([]string, 0, len(r.File))
	for _, zf := range r.File {
		names = append(names, zf.Name)
	}
	return names, nil
}
