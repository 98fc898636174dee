package prompt

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"
)

// LoadDir registers every .json or .hjson file under dir, replacing
// built-ins with the same ID. A file without an "id" takes its ID from the
// relative path: analyst/summary.hjson -> analyst.summary. Fields a file
// leaves empty keep the value of the template it replaces.
func (r *Registry) LoadDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("prompt directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("prompt directory: %s is not a directory", dir)
	}

	loaded := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(path)
		if d.IsDir() || (ext != ".json" && ext != ".hjson") {
			return nil
		}

		t, err := readTemplate(path)
		if err != nil {
			return err
		}
		if t.ID == "" {
			t.ID = idFromPath(dir, path)
		}
		if base, err := r.Get(t.ID); err == nil {
			inherit(t, base)
		}
		if err := r.Register(t); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		loaded++
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("[PROMPT] Loaded %d prompt overrides from %s\n", loaded, dir)
	return nil
}

// readTemplate decodes with hjson, which also accepts plain JSON.
func readTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var t Template
	if err := hjson.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &t, nil
}

func idFromPath(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(rel, string(filepath.Separator), ".")
}

func inherit(t, base *Template) {
	if t.System == "" {
		t.System = base.System
	}
	if t.User == "" {
		t.User = base.User
	}
	if t.Required == nil {
		t.Required = base.Required
	}
}
