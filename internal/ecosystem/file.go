package ecosystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnknownFormat, filepath.Ext(path))
	}
}

// File is a loaded ecosystem file. The apps are kept exactly as they were
// declared, in declaration order.
type File struct {
	// Path is the absolute path of the file
	Path string
	// Dir is the folder relative paths in the file are resolved against
	Dir string
	// Apps declared in the file
	Apps []App
}

// Load reads and validates the ecosystem file at path.
func Load(path string) (File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to resolve ecosystem file path: %w", err)
	}

	format, err := FormatFromPath(absPath)
	if err != nil {
		return File{}, fileError(absPath, err)
	}

	buf, err := os.ReadFile(absPath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read ecosystem file: %w", err)
	}

	apps, err := parse(absPath, buf, format)
	if err != nil {
		return File{}, err
	}

	return File{
		Path: absPath,
		Dir:  filepath.Dir(absPath),
		Apps: apps,
	}, nil
}

// Parse decodes and validates the apps in an ecosystem document.
func Parse(buf []byte, format Format) ([]App, error) {
	return parse("", buf, format)
}

func parse(path string, buf []byte, format Format) ([]App, error) {
	var apps []App
	var err error

	switch format {
	case FormatJSON:
		apps, err = decodeJSON(buf)
	case FormatYAML:
		apps, err = decodeYAML(buf)
	case FormatHCL:
		apps, err = decodeHCL(path, buf)
	default:
		err = fmt.Errorf("%w: '%s'", ErrUnknownFormat, format)
	}

	if err != nil {
		return nil, fileError(path, err)
	}

	if err := validate(path, apps); err != nil {
		return nil, err
	}

	return apps, nil
}

func validate(path string, apps []App) error {
	seen := make(map[string]int, len(apps))

	for idx, app := range apps {
		if err := app.validate(); err != nil {
			return appError(path, idx, app.Name, err)
		}

		if prev, found := seen[app.Name]; found {
			return appError(path, idx, app.Name, fmt.Errorf("%w: already declared by app #%d", ErrDuplicateName, prev))
		}
		seen[app.Name] = idx
	}

	return nil
}

func (file File) Names() []string {
	names := make([]string, 0, len(file.Apps))
	for _, app := range file.Apps {
		names = append(names, app.Name)
	}
	return names
}

func (file File) Find(name string) (App, bool) {
	for _, app := range file.Apps {
		if app.Name == name {
			return app, true
		}
	}
	return App{}, false
}

// Select returns the named apps in declaration order, or every app if no names
// are given.
func (file File) Select(names ...string) ([]App, error) {
	if len(names) == 0 {
		return file.Apps, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, found := file.Find(name); !found {
			return nil, appNotFound(name)
		}
		wanted[name] = true
	}

	selected := make([]App, 0, len(names))
	for _, app := range file.Apps {
		if wanted[app.Name] {
			selected = append(selected, app)
		}
	}
	return selected, nil
}
