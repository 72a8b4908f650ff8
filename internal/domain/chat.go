package domain

import (
	"time"

	"github.com/google/uuid"
)

// MusicSuggestion is a track title with an optional video link. A suggestion
// that failed link validation is stored with both fields nil.
type MusicSuggestion struct {
	Title *string `json:"title" bson:"title"`
	Link  *string `json:"link,omitempty" bson:"link,omitempty"`
}

func (m *MusicSuggestion) clone() *MusicSuggestion {
	if m == nil {
		return nil
	}
	return &MusicSuggestion{Title: cloneString(m.Title), Link: cloneString(m.Link)}
}

// ChatTurn is one feeling statement and the companion's reply.
type ChatTurn struct {
	ID                 string           `json:"id" bson:"id"`
	UserMessage        string           `json:"userMessage" bson:"userMessage"`
	SystemMessage      string           `json:"systemMessage" bson:"systemMessage"`
	SuggestedActivity  []string         `json:"suggestedActivity" bson:"suggestedActivity"`
	SuggestedExercise  []string         `json:"suggestedExercise" bson:"suggestedExercise"`
	SuggestedMusicLink *MusicSuggestion `json:"suggestedMusicLink,omitempty" bson:"suggestedMusicLink,omitempty"`
	CreatedAt          time.Time        `json:"createdAt" bson:"createdAt"`
}

func NewChatTurn(userMessage, systemMessage string, activity, exercise []string, music *MusicSuggestion, now time.Time) ChatTurn {
	if activity == nil {
		activity = []string{}
	}
	if exercise == nil {
		exercise = []string{}
	}
	return ChatTurn{
		ID:                 uuid.NewString(),
		UserMessage:        userMessage,
		SystemMessage:      systemMessage,
		SuggestedActivity:  activity,
		SuggestedExercise:  exercise,
		SuggestedMusicLink: music.clone(),
		CreatedAt:          now.UTC(),
	}
}

func (c ChatTurn) clone() ChatTurn {
	out := c
	out.SuggestedActivity = append([]string{}, c.SuggestedActivity...)
	out.SuggestedExercise = append([]string{}, c.SuggestedExercise...)
	out.SuggestedMusicLink = c.SuggestedMusicLink.clone()
	return out
}
