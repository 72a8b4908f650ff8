package intake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cheerpup/apps/backend/internal/domain"
)

func TestBasicPromptWithoutBackground(t *testing.T) {
	user := domain.NewUser("Asha", nil, nil, "hash", time.Now())
	prompt := BuildPrompt(VariantBasic, user, "I feel fine", DefaultCatalog())

	if !strings.HasPrefix(prompt, "The user hasn't provided much background info.") {
		t.Fatalf("expected no-background line, got:\n%s", prompt)
	}
	for _, absent := range []string{"undefined", "null", "<nil>", "Age:", "Last Mood"} {
		if strings.Contains(prompt, absent) {
			t.Fatalf("prompt should not contain %q:\n%s", absent, prompt)
		}
	}
}

func TestBasicPromptOrdersBackground(t *testing.T) {
	age := 30
	gender := "F"
	yes, no := true, false
	title := "Calm Song"
	user := domain.NewUser("Asha", nil, nil, "hash", time.Now())
	user.Age = &age
	user.Gender = &gender
	user.SoughtPhysicalHelpBefore = &yes
	user.InPhysicalDistress = &no
	user.Medicines = []string{"sertraline", " ", "melatonin"}
	user.Moods = []domain.MoodSample{{Mood: domain.MoodOkay, MoodRating: 3}}
	user.ChatHistory = []domain.ChatTurn{{SuggestedMusicLink: &domain.MusicSuggestion{Title: &title}}}
	before := user.Clone()

	prompt := BuildPrompt(VariantBasic, user, "tired", DefaultCatalog())

	order := []string{
		"- Has sought physical help before: true",
		"- Currently in physical distress: false",
		"- Medicines: sertraline, melatonin",
		"- Age: 30",
		"- Gender: F",
		"- Last Mood: Okay (3/5)",
		`- Last Music Suggested: "Calm Song"`,
		`The user just said: "tired"`,
	}
	last := -1
	for _, line := range order {
		idx := strings.Index(prompt, line)
		if idx < 0 || idx < last {
			t.Fatalf("expected %q after position %d in:\n%s", line, last, prompt)
		}
		last = idx
	}
	if user.Version != before.Version || len(user.ChatHistory) != 1 || len(user.Medicines) != 3 {
		t.Fatalf("prompt building must not mutate the user")
	}
}

func TestEnhancedPromptIncludesLastTenHistory(t *testing.T) {
	user := domain.NewUser("Asha", nil, nil, "hash", time.Now())
	for i := 1; i <= 12; i++ {
		user.Exercises = append(user.Exercises, domain.Exercise{Name: fmt.Sprintf("ex-%02d", i), DurationInDays: 7, Streak: []int{1, 0}})
		user.ChatHistory = append(user.ChatHistory, domain.ChatTurn{UserMessage: fmt.Sprintf("msg-%02d", i), SystemMessage: "reply"})
	}

	prompt := BuildPrompt(VariantEnhanced, user, "hi", DefaultCatalog())

	if strings.Contains(prompt, "ex-01") || strings.Contains(prompt, "ex-02,") || strings.Contains(prompt, "msg-02") {
		t.Fatalf("expected only the last ten records:\n%s", prompt)
	}
	for _, want := range []string{"1. ex-03, 7 days, Streak: 1,0", "10. ex-12", `1. User: "msg-03"`, `10. User: "msg-12"`} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected %q in:\n%s", want, prompt)
		}
	}
	if !strings.HasSuffix(prompt, "Please respond in the strict JSON format described above.") {
		t.Fatalf("unexpected prompt ending:\n%s", prompt)
	}
}

func TestSystemPromptIncludesContractForEnhanced(t *testing.T) {
	catalog := DefaultCatalog()
	if !strings.Contains(catalog.systemPrompt(VariantEnhanced), `"serious"`) {
		t.Fatalf("expected output contract in enhanced system prompt")
	}
	if catalog.systemPrompt(VariantBasic) != catalog.BasicSystem {
		t.Fatalf("expected basic system prompt unchanged")
	}
}

func TestLoadCatalogOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "crisis_message: \"Call 988 if you are in the US.\"\nbasic_system: |\n  You are a calm friend.\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write prompts file: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if catalog.CrisisMessage != "Call 988 if you are in the US." {
		t.Fatalf("unexpected crisis message %q", catalog.CrisisMessage)
	}
	if catalog.BasicSystem != "You are a calm friend." {
		t.Fatalf("unexpected basic system %q", catalog.BasicSystem)
	}
	if catalog.EnhancedSystem != DefaultCatalog().EnhancedSystem {
		t.Fatalf("expected enhanced system default kept")
	}
}

func TestLoadCatalogRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("crisis_mesage: typo\n"), 0o600); err != nil {
		t.Fatalf("write prompts file: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if catalog, err := LoadCatalog(""); err != nil || catalog.CrisisMessage != DefaultCatalog().CrisisMessage {
		t.Fatalf("expected defaults for empty path, got err=%v", err)
	}
}
