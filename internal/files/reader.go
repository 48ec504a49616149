// Package files is the sandboxed file-read collaborator. Reads resolve by
// basename inside one configured directory so a message can never reference a
// path outside it.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// FilenamePattern matches document references inside a chat message.
var FilenamePattern = regexp.MustCompile(`[\w-]+\.(md|txt|py|json|yaml|yml)`)

// Document is a file's content plus coarse metadata.
type Document struct {
	Content  string
	Metadata map[string]string
}

type Reader struct {
	baseDir string
}

func NewReader(baseDir string) *Reader {
	return &Reader{baseDir: baseDir}
}

// Read loads the named file from the docs directory. Only the basename of the
// given name is used.
func (r *Reader) Read(name string) (*Document, error) {
	base := filepath.Base(name)
	fullPath := filepath.Join(r.baseDir, base)

	b, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", name)
		}
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return &Document{
		Content: string(b),
		Metadata: map[string]string{
			"source":    base,
			"type":      "documentation",
			"extension": filepath.Ext(base),
		},
	}, nil
}

// FindFilename returns the first document reference in text, or "".
func FindFilename(text string) string {
	return FilenamePattern.FindString(text)
}
