package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"anthology-downloader/internal/scraper"
)

// LoadSelectors reads selector overrides from a YAML file. Keys missing from
// the file keep the values of scraper.DefaultSelectors.
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("selectors file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	selectors := scraper.DefaultSelectors()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(selectors); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

// Selectors returns the overrides from SelectorsFile, or the built-in
// anthology selectors when no file is configured.
func (c *Config) Selectors() (*scraper.Selectors, error) {
	if c.SelectorsFile == "" {
		return scraper.DefaultSelectors(), nil
	}
	return LoadSelectors(c.SelectorsFile)
}

func validateSelectors(s *scraper.Selectors) error {
	if s.EntrySelector == "" {
		return fmt.Errorf("entry_selector is required")
	}
	if len(s.TitleSelectors) == 0 {
		return fmt.Errorf("title_selectors is required")
	}
	if s.LinkSelector == "" {
		return fmt.Errorf("link_selector is required")
	}
	if s.PDFLabel == "" {
		return fmt.Errorf("pdf_label is required")
	}
	return nil
}
