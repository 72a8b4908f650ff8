package intake

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the fixed texts sent with every intake call. Any field may be
// overridden from a YAML file.
type Catalog struct {
	BasicSystem    string `yaml:"basic_system"`
	EnhancedSystem string `yaml:"enhanced_system"`
	OutputContract string `yaml:"output_contract"`
	CrisisMessage  string `yaml:"crisis_message"`
}

const defaultCrisisMessage = "🚨 We're here for you. If you're feeling overwhelmed or in danger, please reach out to a mental health professional or someone you trust. You're not alone."

const defaultOutputContract = `{
  "response": "short & kind message",
  "suggestedActivity": ["..."],
  "suggestedExercise": ["..."],
  "suggestedMusicLink": { "title": "title of track", "link": "public YouTube URL" },
  "mood": { "mood": "Rough" | "Low" | "Okay" | "Good" | "Great", "moodRating": 1 to 5 },
  "serious": true | false
}`

const defaultBasicSystem = `You are CheerPup, an emotionally intelligent wellness companion and trusted friend.
Your tone is warm, kind and human. The person talking to you wants emotional support.

Tasks:
- Give a short, supportive message based on how the user feels.
- Suggest one calming activity or mental exercise they can do right now.
- Recommend one recent music track (Hindi, English or Lo-fi) that matches their mood.

Music rules:
- The track must be on YouTube, public and currently available. Never return private or deleted videos.
- Prefer songs from recent years and do not repeat the last suggestion.

Safety:
- If the user mentions self-harm, suicidal thoughts, hopelessness or giving up, set "serious" to true.

Return raw JSON only. No markdown, no code blocks.`

const defaultEnhancedSystem = `You are CheerPup, an emotionally intelligent and deeply empathetic AI friend who supports users through emotional ups and downs.
You are not a therapist, but you are wise, warm and safe. Adapt your tone to the user's emotional state.

Context:
- Reference their recent exercises and past conversations when relevant.
- Acknowledge patterns in their mood history.
- Tailor the reply to their situation and show continuity with earlier chats.

Goals:
- Offer a short, heartfelt message that feels personal.
- Suggest one calming activity that fits their history.
- Optionally suggest one light physical or mental exercise that builds on their routines.
- Recommend one recent, emotionally relevant song (title only, released after 2012).

Detect SERIOUS messages: statements of self-harm or hopelessness, a sudden negative shift from previous moods,
references to ending things or giving up. If any are present set "serious" to true.

Return STRICT JSON only, no markdown.`

func DefaultCatalog() Catalog {
	return Catalog{
		BasicSystem:    defaultBasicSystem,
		EnhancedSystem: defaultEnhancedSystem,
		OutputContract: defaultOutputContract,
		CrisisMessage:  defaultCrisisMessage,
	}
}

// LoadCatalog returns the default catalog overlaid with the non-empty fields
// of the YAML file at path. An empty path yields the defaults.
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	path = strings.TrimSpace(path)
	if path == "" {
		return catalog, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read prompts file: %w", err)
	}
	var overlay Catalog
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&overlay); err != nil {
		return Catalog{}, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	overlayString(&catalog.BasicSystem, overlay.BasicSystem)
	overlayString(&catalog.EnhancedSystem, overlay.EnhancedSystem)
	overlayString(&catalog.OutputContract, overlay.OutputContract)
	overlayString(&catalog.CrisisMessage, overlay.CrisisMessage)
	return catalog, nil
}

func overlayString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
