package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/store"
)

// Manifest lists the reference choreographies to import.
type Manifest struct {
	Exercises []ManifestEntry `yaml:"exercises" validate:"required,min=1,dive"`

	dir string
}

// ManifestEntry is one exercise of the manifest. File is relative to the
// manifest.
type ManifestEntry struct {
	Name string `yaml:"name" validate:"required,max=64"`
	Reps int    `yaml:"reps" validate:"gte=0,lte=1000"`
	File string `yaml:"file" validate:"required"`
}

// ImportResult summarizes one imported exercise.
type ImportResult struct {
	Name     string
	Created  bool
	Frames   int
	Segments int
	Dropped  int
}

var validate = validator.New()

// LoadManifest reads and validates a YAML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Exercises))
	for _, e := range m.Exercises {
		if seen[e.Name] {
			return nil, fmt.Errorf("invalid manifest: duplicate exercise %q", e.Name)
		}
		seen[e.Name] = true
	}

	m.dir = filepath.Dir(path)
	return &m, nil
}

// Importer writes manifest entries into the exercise store.
type Importer struct {
	exercises *store.ExerciseRepository
	opts      choreography.Options
	log       *zap.Logger
	dryRun    bool
}

// Import parses every reference and creates or updates its exercise. In
// dry-run mode references are parsed but nothing is written. Import stops
// at the first failing entry.
func (im *Importer) Import(m *Manifest) ([]ImportResult, error) {
	results := make([]ImportResult, 0, len(m.Exercises))
	for _, entry := range m.Exercises {
		res, err := im.importEntry(m.dir, entry)
		if err != nil {
			return results, fmt.Errorf("%s: %w", entry.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (im *Importer) importEntry(dir string, entry ManifestEntry) (ImportResult, error) {
	path := entry.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read reference: %w", err)
	}

	ref, err := choreography.Parse(data, im.opts)
	if err != nil {
		return ImportResult{}, fmt.Errorf("parse reference: %w", err)
	}
	res := ImportResult{
		Name:     entry.Name,
		Frames:   ref.FrameCount(),
		Segments: len(ref.Segments()),
		Dropped:  len(ref.Anomalies()),
	}
	if im.dryRun {
		return res, nil
	}

	exercise, err := im.exercises.GetByName(entry.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		exercise = &store.Exercise{ID: uuid.New().String(), Name: entry.Name, Reps: entry.Reps}
		if err := im.exercises.Create(exercise); err != nil {
			return ImportResult{}, err
		}
		res.Created = true
	case err != nil:
		return ImportResult{}, err
	default:
		exercise.Reps = entry.Reps
		if err := im.exercises.Update(exercise); err != nil {
			return ImportResult{}, err
		}
	}

	if err := im.exercises.SetReference(exercise.ID, data, res.Frames, res.Segments); err != nil {
		return ImportResult{}, err
	}

	im.log.Info("imported reference",
		zap.String("exercise", entry.Name),
		zap.Int("frames", res.Frames),
		zap.Int("segments", res.Segments),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}
