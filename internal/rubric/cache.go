package rubric

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	rubricFile = "rubrica_estructurada.json"
	tasksFile  = "condiciones.json"
)

// Cache is a read-through cache of parsed course files keyed by course id
// (the directory name under the courses root). Population is lazy and
// idempotent: re-parsing the same file yields the same value, so concurrent
// misses are harmless. Entries are never invalidated mid-process.
type Cache struct {
	dir string

	mu      sync.RWMutex
	rubrics map[string]*Rubric
	tasks   map[string]*TaskSet
}

func NewCache(dir string) *Cache {
	return &Cache{
		dir:     dir,
		rubrics: map[string]*Rubric{},
		tasks:   map[string]*TaskSet{},
	}
}

// Courses lists the course ids that have a structured rubric on disk.
func (c *Cache) Courses() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read courses dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.dir, e.Name(), rubricFile)); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Rubric returns the parsed, validated, topic-tagged rubric for a course.
func (c *Cache) Rubric(course string) (*Rubric, error) {
	c.mu.RLock()
	r, ok := c.rubrics[course]
	c.mu.RUnlock()
	if ok {
		return r, nil
	}

	path := filepath.Join(c.dir, filepath.Clean(course), rubricFile)
	r, err := LoadRubric(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rubrics[course] = r
	c.mu.Unlock()
	return r, nil
}

// Tasks returns the optional detailed-task file for a course, or nil when the
// course has none. Absence is cached too so the stat is not repeated.
func (c *Cache) Tasks(course string) (*TaskSet, error) {
	c.mu.RLock()
	t, ok := c.tasks[course]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	path := filepath.Join(c.dir, filepath.Clean(course), tasksFile)
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.mu.Lock()
		c.tasks[course] = nil
		c.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tasks for %s: %w", course, err)
	}
	t = &TaskSet{}
	if err := json.Unmarshal(buf, t); err != nil {
		return nil, fmt.Errorf("parse tasks for %s: %w", course, err)
	}

	c.mu.Lock()
	c.tasks[course] = t
	c.mu.Unlock()
	return t, nil
}

// LoadRubric reads a structured rubric JSON file.
func LoadRubric(path string) (*Rubric, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	return ParseRubric(buf)
}

// ParseRubric decodes, validates and topic-tags a structured rubric.
func ParseRubric(buf []byte) (*Rubric, error) {
	r := &Rubric{}
	if err := json.Unmarshal(buf, r); err != nil {
		return nil, fmt.Errorf("parse rubric: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.Tag()
	return r, nil
}
