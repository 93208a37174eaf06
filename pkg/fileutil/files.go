// Package fileutil provides the filesystem helpers shared by the preprocessing
// steps: sorted glob listings, run timestamps and extension handling.
package fileutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DateLayout renders year, month, day, hour and seconds. Minutes are left out
// to stay compatible with run directories created by earlier pipeline versions.
const DateLayout = "2006_01_02_15_05"

// GetFiles globs dir/pattern and returns the matches in lexical order along
// with their count. A pattern that matches nothing yields an empty list.
func GetFiles(dir, pattern string) ([]string, int, error) {
	searchStr := filepath.Join(dir, pattern)
	files, err := filepath.Glob(searchStr)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "bad glob pattern %q", searchStr)
	}
	if files == nil {
		files = []string{}
	}
	sort.Strings(files)
	return files, len(files), nil
}

// MakeDateStr returns the current local time formatted with DateLayout.
func MakeDateStr() string {
	return FormatDateStr(time.Now())
}

// FormatDateStr formats t with DateLayout.
func FormatDateStr(t time.Time) string {
	return t.Format(DateLayout)
}

// SplitExt splits path into everything before the last extension of its base
// name and that extension, dot included. "run1/bold.nii.gz" becomes
// "run1/bold.nii" and ".gz".
func SplitExt(path string) (base, ext string) {
	ext = filepath.Ext(path)
	if ext == filepath.Base(path) {
		// dotfiles such as ".bashrc" have no extension
		return path, ""
	}
	return strings.TrimSuffix(path, ext), ext
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
