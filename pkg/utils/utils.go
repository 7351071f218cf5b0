package utils

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
)

// SplitLines takes a multiline string and splits it on newlines
// currently we are also stripping \r's which may have adverse effects for
// windows users (but no issues have been raised yet)
func SplitLines(multilineString string) []string {
	multilineString = strings.Replace(multilineString, "\r", "", -1)
	if multilineString == "" || multilineString == "\n" {
		return make([]string, 0)
	}
	lines := strings.Split(multilineString, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	return lines
}

// ExpandPath expands environment variables and a leading tilde in path.
// The path comes back unchanged when the home directory can't be resolved.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// PathKind is what a path turned out to be once we stat it
type PathKind string

const (
	PathFile     PathKind = "file"
	PathDir      PathKind = "dir"
	PathLink     PathKind = "link"
	PathNotExist PathKind = "not_exist"
)

// ClassifyPath lstats a path. Symlinks come back as PathLink no matter what
// they point at.
func ClassifyPath(path string) PathKind {
	info, err := os.Lstat(path)
	if err != nil {
		return PathNotExist
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return PathLink
	case info.IsDir():
		return PathDir
	}
	return PathFile
}

// StatPathKind follows symlinks, collapsing to the three kinds the wire
// protocol knows about.
func StatPathKind(path string) PathKind {
	info, err := os.Stat(path)
	if err != nil {
		return PathNotExist
	}
	if info.IsDir() {
		return PathDir
	}
	return PathFile
}

// FileAttributes returns the attribute tags of a regular file. The only tag
// right now is "executable", set when any execute bit is.
func FileAttributes(path string) []string {
	attrs := []string{}
	info, err := os.Stat(path)
	if err != nil {
		return attrs
	}
	if info.Mode().Perm()&0o111 != 0 {
		attrs = append(attrs, "executable")
	}
	return attrs
}

// ListDirEntries splits a directory listing into subdirectories, regular
// files and symlinks, each as sorted basenames. Symlinks are never counted
// as dirs or files, whatever their target is.
func ListDirEntries(path string) (dirs, files, links []string, err error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, nil, nil, err
	}
	dirs, files, links = []string{}, []string{}, []string{}
	for _, entry := range entries {
		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			links = append(links, entry.Name())
		case entry.IsDir():
			dirs = append(dirs, entry.Name())
		case entry.Type().IsRegular():
			files = append(files, entry.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	sort.Strings(links)
	return dirs, files, links, nil
}

// PossiblePaths returns tab-completion candidates for a partial path: the
// current directory's entries when path is empty, otherwise the entries of
// dirname(path) whose name starts with basename(path).
func PossiblePaths(path string) []string {
	dir, prefix := ".", ""
	if path != "" {
		dir, prefix = filepath.Dir(path), filepath.Base(path)
		if strings.HasSuffix(path, "/") {
			prefix = ""
			dir = filepath.Dir(path + ".")
		}
	}
	entries, err := os.ReadDir(ExpandPath(dir))
	if err != nil {
		return []string{}
	}
	names := lo.Map(entries, func(entry fs.DirEntry, _ int) string { return entry.Name() })
	return lo.Filter(names, func(name string, _ int) bool {
		return strings.HasPrefix(name, prefix)
	})
}

// ColoredString takes a string and a colour attribute and returns a colored
// string with that attribute
func ColoredString(str string, colorAttribute color.Attribute) string {
	colour := color.New(colorAttribute)
	return colour.SprintFunc()(str)
}

// SafeTruncate keeps at most the first limit bytes of str
func SafeTruncate(str string, limit int) string {
	if len(str) > limit {
		return str[0:limit]
	} else {
		return str
	}
}

// TruncateTail keeps at most the last limit bytes of str
func TruncateTail(str string, limit int) string {
	if len(str) > limit {
		return str[len(str)-limit:]
	}
	return str
}

type multiErr []error

func (m multiErr) Error() string {
	var b bytes.Buffer
	b.WriteString("encountered multiple errors:")
	for _, err := range m {
		b.WriteString("\n\t... " + err.Error())
	}
	return b.String()
}

func CloseMany(closers []io.Closer) error {
	errs := make([]error, 0, len(closers))
	for _, c := range closers {
		err := c.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return multiErr(errs)
	}
	return nil
}
