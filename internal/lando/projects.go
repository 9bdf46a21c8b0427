package lando

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project is one Lando project found on disk.
type Project struct {
	Name   string `yaml:"name"`
	Recipe string `yaml:"recipe"`
	Dir    string `yaml:"-"`
}

// scanMaxDepth bounds the project scan so walking a home directory stays
// fast.
const scanMaxDepth = 3

// ScanProjects walks root looking for .lando.yml files and parses each
// one's name and recipe. Directories deeper than scanMaxDepth below root
// are skipped, as are unreadable entries.
func ScanProjects(root string) ([]Project, error) {
	root = filepath.Clean(root)
	var projects []Project

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if depth(root, path) > scanMaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != ".lando.yml" {
			return nil
		}

		proj, perr := readProject(path)
		if perr != nil {
			return nil // malformed project file, keep scanning
		}
		projects = append(projects, proj)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan projects: %w", err)
	}
	return projects, nil
}

func readProject(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, err
	}
	var proj Project
	if err := yaml.Unmarshal(data, &proj); err != nil {
		return Project{}, fmt.Errorf("parse %s: %w", path, err)
	}
	proj.Dir = filepath.Dir(path)
	if proj.Name == "" {
		proj.Name = filepath.Base(proj.Dir)
	}
	return proj, nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
