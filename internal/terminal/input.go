package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LineReader reads trimmed lines of user input
type LineReader struct {
	reader *bufio.Reader
}

// NewLineReader wraps r
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{reader: bufio.NewReader(r)}
}

// ReadLine reads a line of input. A final line without a newline is
// returned before io.EOF.
func (l *LineReader) ReadLine() (string, error) {
	input, err := l.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// FindMatchingFiles searches for files under workingDir matching partial
func FindMatchingFiles(workingDir string, partial string) []string {
	matches := []string{}

	searchDir := workingDir
	pattern := strings.ToLower(partial)

	if strings.Contains(partial, "/") {
		dir, file := filepath.Split(partial)
		searchDir = filepath.Join(workingDir, dir)
		pattern = strings.ToLower(file)
	}

	filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		relPath, err := filepath.Rel(workingDir, path)
		if err != nil || relPath == "." {
			return nil
		}

		// Skip hidden files and directories
		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			isMatch := pattern == "" ||
				strings.Contains(strings.ToLower(relPath), pattern) ||
				strings.Contains(strings.ToLower(info.Name()), pattern)

			if isMatch && len(matches) < 100 {
				matches = append(matches, relPath)
			}
		}

		// Limit depth to avoid scanning too deep
		if info.IsDir() && strings.Count(relPath, string(filepath.Separator)) > 4 {
			return filepath.SkipDir
		}
		return nil
	})

	return matches
}

// ExpandPaths resolves user-supplied paths and globs against workingDir.
// Patterns that match nothing are returned unchanged so the upload
// reports the missing file. A malformed pattern is an error.
func ExpandPaths(workingDir string, args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		arg = strings.Trim(arg, "\"'")
		if arg == "" {
			continue
		}
		if !filepath.IsAbs(arg) {
			arg = filepath.Join(workingDir, arg)
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			out = append(out, arg)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}
