package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"studypartner/internal/apperr"
)

// Courses maps a course slug to the name of its vector index.
type Courses map[string]string

// DefaultCourses is used when no COURSES_FILE is configured.
func DefaultCourses() Courses {
	return Courses{
		"database-systems":  "database",
		"operating-systems": "operating_systems",
		"cloud-computing":   "aws",
	}
}

type coursesFile struct {
	Courses []struct {
		Slug  string `yaml:"slug"`
		Index string `yaml:"index"`
	} `yaml:"courses"`
}

// LoadCourses reads the course table from a yaml file. An empty path yields
// DefaultCourses.
func LoadCourses(path string) (Courses, error) {
	if path == "" {
		return DefaultCourses(), nil
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from application config
	if err != nil {
		return nil, fmt.Errorf("read courses file: %w", err)
	}

	var f coursesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse courses file: %w", err)
	}

	courses := make(Courses, len(f.Courses))
	for _, c := range f.Courses {
		if c.Slug == "" || c.Index == "" {
			return nil, fmt.Errorf("courses file: slug and index are required (slug=%q index=%q)", c.Slug, c.Index)
		}
		if _, dup := courses[c.Slug]; dup {
			return nil, fmt.Errorf("courses file: duplicate slug %q", c.Slug)
		}
		courses[c.Slug] = c.Index
	}
	return courses, nil
}

// Resolve returns the index name for a course.
func (c Courses) Resolve(course string) (string, error) {
	index, ok := c[course]
	if !ok {
		return "", fmt.Errorf("%w: no collection found for course '%s'", apperr.ErrUnknownCourse, course)
	}
	return index, nil
}

// Slugs returns the configured course slugs in sorted order.
func (c Courses) Slugs() []string {
	slugs := make([]string, 0, len(c))
	for s := range c {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs
}
