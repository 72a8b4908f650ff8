package intake

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"cheerpup/apps/backend/internal/domain"
)

type Outcome int

const (
	WellFormed Outcome = iota
	Malformed
)

func (o Outcome) String() string {
	if o == Malformed {
		return "malformed"
	}
	return "well_formed"
}

type MoodReading struct {
	Mood   domain.MoodLabel
	Rating int
}

// Reply is the canonical shape of a completion. Lists are never nil and
// Music is never nil; Mood is nil when the model gave no usable mood.
type Reply struct {
	Response          string
	SuggestedActivity []string
	SuggestedExercise []string
	Music             *domain.MusicSuggestion
	Mood              *MoodReading
	Serious           bool
}

type ParsedCompletion struct {
	Outcome Outcome
	Reply   Reply
	Raw     string
}

// Normalize parses raw completion text. Text that is not a JSON object after
// stripping code fences yields a Malformed result whose reply echoes raw.
func Normalize(raw string) ParsedCompletion {
	var fields map[string]any
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &fields); err != nil || fields == nil {
		return ParsedCompletion{Outcome: Malformed, Reply: fallbackReply(raw), Raw: raw}
	}

	reply := Reply{
		SuggestedActivity: stringList(fields["suggestedActivity"]),
		SuggestedExercise: stringList(fields["suggestedExercise"]),
		Music:             musicSuggestion(fields),
		Mood:              moodReading(fields["mood"]),
	}
	reply.Response, _ = fields["response"].(string)
	reply.Serious, _ = fields["serious"].(bool)
	return ParsedCompletion{Outcome: WellFormed, Reply: reply, Raw: raw}
}

func fallbackReply(raw string) Reply {
	return Reply{
		Response:          raw,
		SuggestedActivity: []string{},
		SuggestedExercise: []string{},
		Music:             &domain.MusicSuggestion{},
		Mood:              &MoodReading{Mood: domain.MoodOkay, Rating: 3},
	}
}

func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if len(text) >= 4 && strings.EqualFold(text[:4], "json") {
			text = text[4:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// stringList accepts a list of strings or a single string.
func stringList(value any) []string {
	out := []string{}
	switch v := value.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func musicSuggestion(fields map[string]any) *domain.MusicSuggestion {
	raw, ok := fields["suggestedMusicLink"].(map[string]any)
	if !ok {
		if list, isList := fields["suggestedMusicLinks"].([]any); isList && len(list) > 0 {
			raw, _ = list[0].(map[string]any)
		}
	}
	out := &domain.MusicSuggestion{}
	if raw == nil {
		return out
	}
	if title, ok := raw["title"].(string); ok && strings.TrimSpace(title) != "" {
		t := strings.TrimSpace(title)
		out.Title = &t
	}
	if link, ok := raw["link"].(string); ok && strings.TrimSpace(link) != "" {
		l := strings.TrimSpace(link)
		out.Link = &l
	}
	return out
}

// moodReading accepts {"mood": label, "moodRating": n} with either half
// missing, or a bare label string. Missing halves come from the scale.
func moodReading(value any) *MoodReading {
	var (
		labelRaw  any
		ratingRaw any
	)
	switch v := value.(type) {
	case string:
		labelRaw = v
	case map[string]any:
		labelRaw = v["mood"]
		ratingRaw = v["moodRating"]
	default:
		return nil
	}

	label, hasLabel := domain.MoodLabel(""), false
	if s, ok := labelRaw.(string); ok {
		label, hasLabel = domain.ParseMoodLabel(s)
	}
	rating, hasRating := parseRating(ratingRaw)

	switch {
	case hasLabel && hasRating:
		return &MoodReading{Mood: label, Rating: rating}
	case hasLabel && ratingRaw == nil:
		return &MoodReading{Mood: label, Rating: label.Rating()}
	case hasRating && labelRaw == nil:
		scaled, _ := domain.MoodForRating(rating)
		return &MoodReading{Mood: scaled, Rating: rating}
	default:
		return nil
	}
}

func parseRating(value any) (int, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if f != math.Trunc(f) || f < 1 || f > 5 {
		return 0, false
	}
	return int(f), true
}
