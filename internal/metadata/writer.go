// Package metadata accumulates identifier -> title pairs during a run and
// writes them once, at the end, as a JSON object with sorted keys.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Writer struct {
	fileName string
	titles   map[string]string
}

func NewWriter(fileName string) *Writer {
	return &Writer{
		fileName: fileName,
		titles:   make(map[string]string),
	}
}

// Record stores title under identifier. It reports whether the identifier was
// already present with a different title; the later title wins.
func (w *Writer) Record(identifier, title string) (replaced bool) {
	prev, ok := w.titles[identifier]
	w.titles[identifier] = title
	return ok && prev != title
}

func (w *Writer) Len() int {
	return len(w.titles)
}

// Title returns the recorded title of identifier.
func (w *Writer) Title(identifier string) (string, bool) {
	t, ok := w.titles[identifier]
	return t, ok
}

// Flush writes the whole map to outputDir and returns the file path. Keys are
// sorted, indentation is two spaces and non-ASCII text is kept literally.
func (w *Writer) Flush(outputDir string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(w.titles); err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}

	path := filepath.Join(outputDir, w.fileName)
	if err := os.WriteFile(path, unescapeLineSeparators(buf.Bytes()), 0o644); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}
	return path, nil
}

// unescapeLineSeparators restores U+2028 and U+2029, which encoding/json
// escapes even with HTML escaping off. Other escape sequences are copied
// as they are, so an escaped backslash followed by "u2028" stays intact.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if rest := b[i+1:]; bytes.HasPrefix(rest, []byte("u2028")) || bytes.HasPrefix(rest, []byte("u2029")) {
			if rest[4] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}
