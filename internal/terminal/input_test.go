package terminal

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader(t *testing.T) {
	r := NewLineReader(strings.NewReader("  first \nsecond\nlast"))

	for _, want := range []string{"first", "second", "last"} {
		got, err := r.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := r.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func makeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, rel := range []string{"docs/report.pdf", "docs/notes.md", "readme.txt", ".hidden/secret.pdf"} {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	}
	return dir
}

func TestFindMatchingFiles(t *testing.T) {
	dir := makeTree(t)

	all := FindMatchingFiles(dir, "")
	assert.ElementsMatch(t, []string{
		filepath.Join("docs", "notes.md"),
		filepath.Join("docs", "report.pdf"),
		"readme.txt",
	}, all)

	assert.Equal(t, []string{filepath.Join("docs", "report.pdf")}, FindMatchingFiles(dir, "REPORT"))
	assert.Equal(t, []string{filepath.Join("docs", "notes.md")}, FindMatchingFiles(dir, "docs/no"))
}

func TestExpandPaths(t *testing.T) {
	dir := makeTree(t)

	got, err := ExpandPaths(dir, []string{"docs/*.pdf", "'readme.txt'", "missing.pdf", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "docs", "report.pdf"),
		filepath.Join(dir, "readme.txt"),
		filepath.Join(dir, "missing.pdf"),
	}, got)

	_, err = ExpandPaths(dir, []string{"readme.txt", "docs/[.pdf"})
	assert.ErrorIs(t, err, filepath.ErrBadPattern)
}

func TestSpinnerStartStop(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf)

	s.Stop() // stopping an idle spinner is a no-op
	s.Start("Loading Chat...")
	s.Start("ignored")
	s.Stop()

	assert.Contains(t, buf.String(), "Loading Chat...")
	assert.NotContains(t, buf.String(), "ignored")
}
