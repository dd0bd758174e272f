package mood

import (
	_ "embed"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed playlists.yaml
var defaultCatalogYAML []byte

// Playlist is one recommendable playlist.
type Playlist struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Catalog maps moods to candidate playlists.
type Catalog map[Mood][]Playlist

// DefaultCatalog returns the built-in playlist table.
func DefaultCatalog() Catalog {
	c, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here is a
		// build defect.
		panic(fmt.Sprintf("mood: embedded catalog invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a user catalog from path, falling back to the built-in
// table when the file does not exist.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("read playlist catalog: %w", err)
	}
	c, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse playlist catalog %s: %w", path, err)
	}
	return c, nil
}

func parseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if len(c[Neutral]) == 0 {
		return nil, fmt.Errorf("catalog has no neutral playlists")
	}
	return c, nil
}

// Recommend picks a random playlist for the mood, falling back to neutral for
// moods with no entries.
func (c Catalog) Recommend(m Mood) Playlist {
	candidates := c[m]
	if len(candidates) == 0 {
		candidates = c[Neutral]
	}
	return candidates[rand.Intn(len(candidates))]
}
