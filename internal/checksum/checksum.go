package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateFileHash returns the hex SHA-256 of the file at path.
func (g *Generator) GenerateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	return g.GenerateHash(file)
}

// GenerateHash returns the hex SHA-256 of everything read from r.
func (g *Generator) GenerateHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFileHash reports whether the file still matches expectedHash.
func (g *Generator) VerifyFileHash(expectedHash, path string) (bool, error) {
	computed, err := g.GenerateFileHash(path)
	if err != nil {
		return false, err
	}
	return computed == expectedHash, nil
}
