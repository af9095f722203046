package importer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// FileExtension is the extension of FSH source files.
const FileExtension = ".fsh"

// LoadFiles reads the FSH files named by paths. Directories are walked
// recursively for .fsh files; files named directly are read whatever their
// extension. Files are returned sorted by path, each once. Every unreadable
// path is reported in the returned error, alongside whatever could be read.
func LoadFiles(paths []string) ([]RawFSH, error) {
	var (
		names []string
		errs  error
	)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stat %s: %w", p, err))
			continue
		}
		if !info.IsDir() {
			names = append(names, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), FileExtension) {
				names = append(names, path)
			}
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("walk %s: %w", p, err))
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)

	files := make([]RawFSH, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read %s: %w", name, err))
			continue
		}
		files = append(files, RawFSH{Path: name, Content: content})
	}
	return files, errs
}
