package completion

import (
	"context"
	"encoding/json"
	"strings"
)

// MockClient answers with a canned reply in the intake JSON contract. It is
// used for local runs without an API key.
type MockClient struct {
	Model string
}

var mockCrisisWords = []string{"hopeless", "give up", "end it", "hurt myself", "no reason to live"}

func (m MockClient) Complete(_ context.Context, req Request) (Response, error) {
	lowered := strings.ToLower(req.UserPrompt)
	if idx := strings.LastIndex(lowered, "the user just said:"); idx >= 0 {
		lowered = lowered[idx:]
	}

	reply := map[string]any{
		"response":          "Thanks for sharing how you feel. Let's take this one small step at a time.",
		"suggestedActivity": []string{"Take five slow breaths"},
		"suggestedExercise": []string{"Two minute stretch"},
		"suggestedMusicLink": map[string]any{
			"title": "Sunflower",
			"link":  "https://www.youtube.com/watch?v=ApXoWvfEYVU",
		},
		"mood":    map[string]any{"mood": "Okay", "moodRating": 3},
		"serious": false,
	}
	switch {
	case containsAny(lowered, mockCrisisWords):
		reply["response"] = "I'm really glad you told me. You matter, and you don't have to carry this alone."
		reply["mood"] = map[string]any{"mood": "Rough", "moodRating": 1}
		reply["serious"] = true
	case containsAny(lowered, []string{"sad", "tired", "overwhelmed", "anxious"}):
		reply["mood"] = map[string]any{"mood": "Low", "moodRating": 2}
	case containsAny(lowered, []string{"happy", "great", "excited"}):
		reply["response"] = "That's wonderful to hear! Keep riding that energy."
		reply["mood"] = map[string]any{"mood": "Great", "moodRating": 5}
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		return Response{}, err
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = m.Model
	}
	if model == "" {
		model = "mock"
	}
	return Response{Text: string(raw), Model: model, Usage: Usage{InputTokens: 120, OutputTokens: 80, TotalTokens: 200}}, nil
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
