package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one bookmark to import.
type Entry struct {
	Owner string `yaml:"owner"`
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// File is the root structure of the seed YAML file.
type File struct {
	Bookmarks []Entry `yaml:"bookmarks"`
}

// Loader handles loading and parsing of the seed file.
type Loader struct {
	filePath string
}

// NewLoader creates a seed file loader.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the seed file, dropping entries that are missing an
// owner or a URL.
func (l *Loader) Load() ([]Entry, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	entries := make([]Entry, 0, len(f.Bookmarks))
	for _, e := range f.Bookmarks {
		if e.Owner == "" || e.URL == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
