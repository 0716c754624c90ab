// Package content supplies reference choreographies by exercise name.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/aadiyog/yogatracker/internal/store"
)

var (
	// ErrUnknownExercise is returned for a name no source knows about.
	ErrUnknownExercise = errors.New("unknown exercise")
	// ErrNoReference is returned when an exercise exists without a choreography.
	ErrNoReference = errors.New("exercise has no reference choreography")
)

// Entry is the reference data of one exercise.
type Entry struct {
	Name string
	Reps int
	Data []byte
}

// Source looks up reference choreographies.
type Source interface {
	Reference(ctx context.Context, name string) (Entry, error)
}

// ExerciseFinder is the part of the exercise repository a StoreSource needs.
type ExerciseFinder interface {
	GetByName(name string) (*store.Exercise, error)
}

// StoreSource reads references from the exercise table.
type StoreSource struct {
	exercises ExerciseFinder
}

// NewStoreSource creates a StoreSource.
func NewStoreSource(exercises ExerciseFinder) *StoreSource {
	return &StoreSource{exercises: exercises}
}

// Reference implements Source.
func (s *StoreSource) Reference(ctx context.Context, name string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	e, err := s.exercises.GetByName(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Entry{}, fmt.Errorf("%w: %q", ErrUnknownExercise, name)
		}
		return Entry{}, fmt.Errorf("failed to load exercise %q: %w", name, err)
	}
	if !e.HasReference() {
		return Entry{}, fmt.Errorf("%w: %q", ErrNoReference, name)
	}

	return Entry{Name: e.Name, Reps: e.Reps, Data: e.Reference}, nil
}

// CachedSource keeps recently used references in memory.
type CachedSource struct {
	source Source
	cache  *cache.Cache
}

// NewCachedSource wraps source with a cache whose entries expire after ttl.
func NewCachedSource(source Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Reference implements Source. Failed lookups are not cached.
func (c *CachedSource) Reference(ctx context.Context, name string) (Entry, error) {
	if x, found := c.cache.Get(name); found {
		return x.(Entry), nil
	}

	entry, err := c.source.Reference(ctx, name)
	if err != nil {
		return Entry{}, err
	}

	c.cache.Set(name, entry, cache.DefaultExpiration)
	return entry, nil
}

// Invalidate drops a cached reference so the next lookup reads through.
func (c *CachedSource) Invalidate(name string) {
	c.cache.Delete(name)
}

// Flush drops every cached reference.
func (c *CachedSource) Flush() {
	c.cache.Flush()
}
