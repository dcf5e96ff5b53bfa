// Package recipe stores declarative reshape recipes as YAML and runs them
// through the tidy pipeline.
package recipe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
)

// FileName is the recipe file inside each recipe directory.
const FileName = "recipe.yaml"

// ErrExists is returned by Create when the recipe directory is already in use.
var ErrExists = errors.New("recipe already exists")

// Recipe is a source, a chain of steps and the outputs of a run.
type Recipe struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Source      Source    `yaml:"source"`
	Steps       []Step    `yaml:"steps"`
	Output      Output    `yaml:"output,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`

	rootDir string
}

// Source names where the input table comes from: a file path (resolved
// against the recipe directory when relative) or a SQL query run against the
// configured database.
type Source struct {
	Path       string   `yaml:"path,omitempty"`
	Sheet      string   `yaml:"sheet,omitempty"`
	SheetIndex int      `yaml:"sheet_index,omitempty"`
	Query      string   `yaml:"query,omitempty"`
	Delimiter  string   `yaml:"delimiter,omitempty"`
	Strings    []string `yaml:"strings,omitempty"`
}

// Output says where a run's result goes.
type Output struct {
	// CSV is the result path; relative paths resolve against the recipe directory.
	CSV   string `yaml:"csv,omitempty"`
	Chart *Chart `yaml:"chart,omitempty"`
}

// Chart describes a chart spec written after the steps.
type Chart struct {
	Kind  string `yaml:"kind"`
	X     string `yaml:"x,omitempty"`
	Y     string `yaml:"y,omitempty"`
	Group string `yaml:"group,omitempty"`
	Title string `yaml:"title,omitempty"`
	Bins  int    `yaml:"bins,omitempty"`
	Fit   bool   `yaml:"fit,omitempty"`
	Path  string `yaml:"path"`
}

// New constructs an in-memory recipe with a fresh ID. Call Save to persist.
func New(name, description, rootDir string) *Recipe {
	now := time.Now().UTC()
	return &Recipe{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		rootDir:     rootDir,
	}
}

// Create makes <recipesDir>/<name>/ and saves r there. It refuses to reuse a
// directory that already holds a recipe or any other files.
func Create(recipesDir string, r *Recipe) error {
	if err := ValidName(r.Name); err != nil {
		return err
	}
	dir := filepath.Join(recipesDir, r.Name)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return fmt.Errorf("%w at %s", ErrExists, dir)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("inspect recipe directory: %w", err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("directory %s already exists and is not empty; refusing to initialize recipe", dir)
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat recipe directory: %w", err)
	}
	r.rootDir = dir
	return r.Save()
}

// ValidName rejects names that cannot be a single directory.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid recipe name %q", name)
	}
	return nil
}

// Load reads recipe.yaml from dir.
func Load(dir string) (*Recipe, error) {
	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("recipe not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	r, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.rootDir = dir
	return r, nil
}

// Parse decodes and validates a recipe document. Unknown fields are errors so
// typos in step options do not pass silently.
func Parse(b []byte) (*Recipe, error) {
	var r Recipe
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("parse recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// RootDir returns the on-disk recipe directory.
func (r *Recipe) RootDir() string { return r.rootDir }

// Save writes recipe.yaml atomically.
func (r *Recipe) Save() error {
	if r.rootDir == "" {
		return errors.New("recipe root directory not set")
	}
	if err := utils.EnsureDir(r.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	r.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal recipe: %w", err)
	}
	return utils.SafeWriteFile(filepath.Join(r.rootDir, FileName), data)
}

// Resolve makes a recipe-relative path absolute.
func (r *Recipe) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || r.rootDir == "" {
		return p
	}
	return filepath.Join(r.rootDir, p)
}

// Validate checks the source, every step and the outputs, reporting all
// problems at once.
func (r *Recipe) Validate() error {
	var errs []error
	if err := ValidName(r.Name); err != nil {
		errs = append(errs, err)
	}
	switch {
	case r.Source.Path == "" && r.Source.Query == "":
		errs = append(errs, errors.New("source: path or query is required"))
	case r.Source.Path != "" && r.Source.Query != "":
		errs = append(errs, errors.New("source: path and query are exclusive"))
	}
	for i, s := range r.Steps {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, s.Op, err))
		}
	}
	if c := r.Output.Chart; c != nil && c.Path == "" {
		errs = append(errs, errors.New("output.chart: path is required"))
	}
	return errors.Join(errs...)
}

// Summary is one entry of List.
type Summary struct {
	Name        string
	Description string
	Steps       int
	UpdatedAt   time.Time
}

// List returns the recipes under root, sorted by name. Directories without
// a readable recipe are skipped.
func List(root string) ([]Summary, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Summary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := Load(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, Summary{Name: r.Name, Description: r.Description, Steps: len(r.Steps), UpdatedAt: r.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
