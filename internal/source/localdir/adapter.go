// Package localdir reads photos from a local directory. Two layouts are
// supported:
//
//	<root>/manifest.jsonl + <root>/images/<filename>
//	<root>/<Scientific_name>/<photo>.jpg
//
// The manifest wins when present. In the folder layout underscores in the
// folder name stand for spaces.
package localdir

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/fishlens/internal/source"
)

const (
	// ManifestFileName is the JSONL manifest file name.
	ManifestFileName = "manifest.jsonl"
	// ImagesDir holds the files a manifest refers to.
	ImagesDir = "images"
)

// ManifestItem represents a line of manifest.jsonl.
type ManifestItem struct {
	ID             string   `json:"id"`
	Filename       string   `json:"filename"`
	ScientificName string   `json:"scientific_name"`
	Tags           []string `json:"tags"`
	SourceURL      string   `json:"source_url"`
}

var imageExts = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
}

// Adapter implements source.Source over a local directory.
type Adapter struct {
	root   string
	items  []source.PhotoItem
	loaded bool
}

// NewAdapter creates a new directory adapter rooted at root.
func NewAdapter(root string) *Adapter {
	return &Adapter{root: root}
}

func (a *Adapter) GetSourceID() string {
	return "localdir:" + filepath.Base(a.root)
}

func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Local directory (%s)", a.root)
}

// FetchBatch returns items in a stable order; the cursor is an index.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.PhotoItem, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to load items from %s: %w", a.root, err)
		}
		a.loaded = true
	}

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}
	if start >= len(a.items) {
		return []source.PhotoItem{}, "", nil
	}

	end := start + limit
	if limit <= 0 || end > len(a.items) {
		end = len(a.items)
	}
	next := ""
	if end < len(a.items) {
		next = strconv.Itoa(end)
	}
	return a.items[start:end], next, nil
}

func (a *Adapter) loadItems() error {
	manifest := filepath.Join(a.root, ManifestFileName)
	if _, err := os.Stat(manifest); err == nil {
		if err := a.loadManifest(manifest); err != nil {
			return err
		}
	} else if err := a.walkFolders(); err != nil {
		return err
	}
	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].SourceID < a.items[j].SourceID
	})
	return nil
}

func (a *Adapter) loadManifest(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	imagesPath := filepath.Join(a.root, ImagesDir)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			continue // malformed line
		}
		if item.ScientificName == "" {
			continue
		}

		photo := source.PhotoItem{
			SourceID:       item.ID,
			ScientificName: item.ScientificName,
			Tags:           item.Tags,
		}
		switch {
		case item.Filename != "":
			localPath := filepath.Join(imagesPath, item.Filename)
			if _, err := os.Stat(localPath); err != nil {
				continue
			}
			photo.LocalPath = localPath
			photo.Format = formatOf(item.Filename)
		case item.SourceURL != "":
			photo.URL = item.SourceURL
			photo.Format = formatOf(item.SourceURL)
		default:
			continue
		}
		if photo.SourceID == "" {
			photo.SourceID = item.Filename + item.SourceURL
		}
		a.items = append(a.items, photo)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}
	return nil
}

func (a *Adapter) walkFolders() error {
	species, err := os.ReadDir(a.root)
	if err != nil {
		return err
	}
	for _, dir := range species {
		if !dir.IsDir() || strings.HasPrefix(dir.Name(), ".") {
			continue
		}
		name := strings.ReplaceAll(dir.Name(), "_", " ")
		files, err := os.ReadDir(filepath.Join(a.root, dir.Name()))
		if err != nil {
			return err
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			format := formatOf(f.Name())
			if _, ok := imageExts[format]; !ok {
				continue
			}
			a.items = append(a.items, source.PhotoItem{
				SourceID:       dir.Name() + "/" + f.Name(),
				ScientificName: name,
				Tags:           []string{strings.ToLower(name)},
				Format:         format,
				LocalPath:      filepath.Join(a.root, dir.Name(), f.Name()),
			})
		}
	}
	return nil
}

func formatOf(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
