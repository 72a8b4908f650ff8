package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Exercise is a routine tracked as one 0/1 streak entry per calendar day.
type Exercise struct {
	ID             string     `json:"id" bson:"id"`
	Name           string     `json:"name" bson:"name"`
	DurationInDays int        `json:"durationInDays" bson:"durationInDays"`
	Streak         []int      `json:"streak" bson:"streak"`
	LastUpdated    *time.Time `json:"lastUpdated,omitempty" bson:"lastUpdated,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updatedAt"`
}

var (
	ErrExerciseNameRequired = errors.New("exercise name is required")
	ErrExerciseDuration     = errors.New("durationInDays must not be negative")
	ErrStreakValue          = errors.New("streak entries must be 0 or 1")
)

func NewExercise(name string, durationInDays int, streak []int, now time.Time) (Exercise, error) {
	ex := Exercise{
		ID:             uuid.NewString(),
		Name:           name,
		DurationInDays: durationInDays,
		Streak:         append([]int{}, streak...),
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	if err := ex.Validate(); err != nil {
		return Exercise{}, err
	}
	return ex, nil
}

func (e Exercise) Validate() error {
	if e.Name == "" {
		return ErrExerciseNameRequired
	}
	if e.DurationInDays < 0 {
		return ErrExerciseDuration
	}
	return ValidateStreak(e.Streak)
}

func ValidateStreak(streak []int) error {
	for _, v := range streak {
		if v != 0 && v != 1 {
			return ErrStreakValue
		}
	}
	return nil
}

// MarkDone records completion for the calendar day of now (UTC). Whole days
// missed since LastUpdated are back-filled with 0 so the streak holds exactly
// one entry per elapsed day. Marking twice on the same day does not grow the
// streak.
func (e *Exercise) MarkDone(now time.Time) {
	today := startOfUTCDay(now)
	if e.LastUpdated != nil && len(e.Streak) > 0 {
		gap := int(today.Sub(startOfUTCDay(*e.LastUpdated)).Hours() / 24)
		if gap <= 0 {
			e.Streak[len(e.Streak)-1] = 1
			e.touch(now)
			return
		}
		for i := 1; i < gap; i++ {
			e.Streak = append(e.Streak, 0)
		}
	}
	e.Streak = append(e.Streak, 1)
	e.touch(now)
}

func (e *Exercise) touch(now time.Time) {
	stamp := now.UTC()
	e.LastUpdated = &stamp
	e.UpdatedAt = stamp
}

func (e Exercise) clone() Exercise {
	out := e
	out.Streak = append([]int{}, e.Streak...)
	if e.LastUpdated != nil {
		stamp := *e.LastUpdated
		out.LastUpdated = &stamp
	}
	return out
}

func startOfUTCDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
