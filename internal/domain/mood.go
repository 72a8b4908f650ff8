package domain

import (
	"errors"
	"strings"
	"time"
)

type MoodLabel string

const (
	MoodRough MoodLabel = "Rough"
	MoodLow   MoodLabel = "Low"
	MoodOkay  MoodLabel = "Okay"
	MoodGood  MoodLabel = "Good"
	MoodGreat MoodLabel = "Great"
)

// moodScale is ordered low to high; a label's rating is its index + 1.
var moodScale = []MoodLabel{MoodRough, MoodLow, MoodOkay, MoodGood, MoodGreat}

var ErrInvalidMood = errors.New("mood must be one of Rough, Low, Okay, Good, Great with rating 1-5")

// ParseMoodLabel matches a label case-insensitively against the scale.
func ParseMoodLabel(raw string) (MoodLabel, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, label := range moodScale {
		if strings.EqualFold(trimmed, string(label)) {
			return label, true
		}
	}
	return "", false
}

// Rating is the label's position on the 1-5 scale.
func (m MoodLabel) Rating() int {
	for i, label := range moodScale {
		if label == m {
			return i + 1
		}
	}
	return 0
}

// MoodForRating returns the scale label for a 1-5 rating.
func MoodForRating(rating int) (MoodLabel, bool) {
	if rating < 1 || rating > len(moodScale) {
		return "", false
	}
	return moodScale[rating-1], true
}

type MoodSample struct {
	Mood       MoodLabel `json:"mood" bson:"mood"`
	MoodRating int       `json:"moodRating" bson:"moodRating"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

func NewMoodSample(label MoodLabel, rating int, now time.Time) (MoodSample, error) {
	if label.Rating() == 0 || rating < 1 || rating > 5 {
		return MoodSample{}, ErrInvalidMood
	}
	return MoodSample{Mood: label, MoodRating: rating, CreatedAt: now.UTC()}, nil
}
