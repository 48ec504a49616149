package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# Notes"), 0o644))

	doc, err := NewReader(dir).Read("notes.md")
	require.NoError(t, err)
	assert.Equal(t, "# Notes", doc.Content)
	assert.Equal(t, "notes.md", doc.Metadata["source"])
	assert.Equal(t, ".md", doc.Metadata["extension"])
}

func TestReaderStripsDirectoryComponents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.txt"), []byte("data"), 0o644))

	doc, err := NewReader(dir).Read("../../etc/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "data", doc.Content)
}

func TestReaderNotFound(t *testing.T) {
	_, err := NewReader(t.TempDir()).Read("missing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestFindFilename(t *testing.T) {
	assert.Equal(t, "report.txt", FindFilename("please load report.txt for me"))
	assert.Equal(t, "my-doc.md", FindFilename("summarize my-doc.md"))
	assert.Equal(t, "config.yaml", FindFilename("check config.yaml and config.ini"))
	assert.Empty(t, FindFilename("no file mentioned here"))
	assert.Empty(t, FindFilename("archive.zip is unsupported"))
}
