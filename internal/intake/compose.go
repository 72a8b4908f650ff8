package intake

import "cheerpup/apps/backend/internal/domain"

type PayloadMood struct {
	Mood       domain.MoodLabel `json:"mood"`
	MoodRating int              `json:"moodRating"`
}

// Payload is the reply body of an intake call.
type Payload struct {
	Response           string                  `json:"response"`
	SuggestedActivity  []string                `json:"suggestedActivity"`
	SuggestedExercise  []string                `json:"suggestedExercise"`
	SuggestedMusicLink *domain.MusicSuggestion `json:"suggestedMusicLink"`
	Mood               *PayloadMood            `json:"mood"`
	Serious            bool                    `json:"serious"`
	Alert              *string                 `json:"alert,omitempty"`
}

func compose(reply Reply, alert *string) Payload {
	payload := Payload{
		Response:           reply.Response,
		SuggestedActivity:  reply.SuggestedActivity,
		SuggestedExercise:  reply.SuggestedExercise,
		SuggestedMusicLink: reply.Music,
		Serious:            reply.Serious,
		Alert:              alert,
	}
	if reply.Mood != nil {
		payload.Mood = &PayloadMood{Mood: reply.Mood.Mood, MoodRating: reply.Mood.Rating}
	}
	return payload
}
