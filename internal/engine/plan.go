package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/aadiyog/yogatracker/internal/choreography"
)

var (
	// ErrEmptyChoreography is returned when an exercise has no usable segment.
	ErrEmptyChoreography = errors.New("empty reference choreography")
	// ErrEmptyPlan is returned when a plan has no exercises.
	ErrEmptyPlan = errors.New("exercise plan has no exercises")
)

// Exercise is one plan entry. TargetReps <= 0 means the exercise never
// completes on its own.
type Exercise struct {
	Name       string
	Reference  *choreography.Reference
	TargetReps int
}

// LoadExercise extracts the reference of one exercise from its JSON form.
func LoadExercise(name string, data []byte, reps int, opts choreography.Options) (Exercise, error) {
	ref, err := choreography.Parse(data, opts)
	if err != nil {
		if errors.Is(err, choreography.ErrNoSegments) {
			return Exercise{}, fmt.Errorf("%w: exercise %q: %v", ErrEmptyChoreography, name, err)
		}
		return Exercise{}, fmt.Errorf("exercise %q: %w", name, err)
	}
	return Exercise{Name: name, Reference: ref, TargetReps: reps}, nil
}

// Plan is an ordered, immutable list of exercises.
type Plan struct {
	exercises []Exercise
}

// NewPlan validates and wraps the exercises.
func NewPlan(exercises ...Exercise) (*Plan, error) {
	if len(exercises) == 0 {
		return nil, ErrEmptyPlan
	}
	for _, ex := range exercises {
		if ex.Reference == nil || len(ex.Reference.Segments()) == 0 {
			return nil, fmt.Errorf("%w: exercise %q", ErrEmptyChoreography, ex.Name)
		}
	}
	out := make([]Exercise, len(exercises))
	copy(out, exercises)
	return &Plan{exercises: out}, nil
}

// Len returns the number of exercises.
func (p *Plan) Len() int {
	return len(p.exercises)
}

// Exercise returns the exercise at index i.
func (p *Plan) Exercise(i int) Exercise {
	return p.exercises[i]
}

// Names returns the exercise names in plan order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.exercises))
	for i, ex := range p.exercises {
		names[i] = ex.Name
	}
	return names
}

// Score is the completion percentage round(reps/target*100), or 0 when the
// target is not positive.
func Score(reps, target int) int {
	if target <= 0 {
		return 0
	}
	return int(math.Round(float64(reps) / float64(target) * 100))
}
