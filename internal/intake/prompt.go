package intake

import (
	"fmt"
	"strconv"
	"strings"

	"cheerpup/apps/backend/internal/domain"
)

type Variant string

const (
	VariantBasic    Variant = "basic"
	VariantEnhanced Variant = "enhanced"
)

const recentHistoryLimit = 10

// BuildPrompt renders the user-turn prompt for a variant. It reads the user
// and never modifies it.
func BuildPrompt(variant Variant, user *domain.User, feelingText string, catalog Catalog) string {
	if variant == VariantEnhanced {
		return buildEnhancedPrompt(user, feelingText)
	}
	return buildBasicPrompt(user, feelingText, catalog.OutputContract)
}

func (c Catalog) systemPrompt(variant Variant) string {
	if variant == VariantEnhanced {
		return c.EnhancedSystem + "\n\nResponse format:\n" + c.OutputContract
	}
	return c.BasicSystem
}

func buildBasicPrompt(user *domain.User, feelingText, contract string) string {
	lines := make([]string, 0, 7)
	lines = appendBool(lines, "Has sought physical help before", user.SoughtPhysicalHelpBefore)
	lines = appendBool(lines, "Currently in physical distress", user.InPhysicalDistress)
	lines = appendMedicines(lines, user.Medicines)
	lines = appendProfile(lines, user)
	lines = appendLastMood(lines, user)
	if title, ok := user.LastMusicTitle(); ok {
		lines = append(lines, fmt.Sprintf("- Last Music Suggested: %q", title))
	}

	background := "The user hasn't provided much background info."
	if len(lines) > 0 {
		background = "Here is some background info about the user:\n" + strings.Join(lines, "\n")
	}

	var b strings.Builder
	b.WriteString(background)
	b.WriteString("\n\nThe user just said: ")
	b.WriteString(strconv.Quote(feelingText))
	b.WriteString("\n\nPlease respond in this JSON format:\n\n")
	b.WriteString(contract)
	b.WriteString("\n\nReturn valid JSON only (no markdown or code blocks).")
	return b.String()
}

func buildEnhancedPrompt(user *domain.User, feelingText string) string {
	lines := make([]string, 0, 32)
	lines = appendProfile(lines, user)
	lines = appendMedicines(lines, user.Medicines)
	lines = appendBool(lines, "Has sought physical help before", user.SoughtPhysicalHelpBefore)
	lines = appendBool(lines, "Currently in physical distress", user.InPhysicalDistress)
	lines = appendLastMood(lines, user)

	if exercises := lastN(user.Exercises, recentHistoryLimit); len(exercises) > 0 {
		lines = append(lines, "", fmt.Sprintf("Recent Exercises (last %d):", recentHistoryLimit))
		for i, ex := range exercises {
			lines = append(lines, fmt.Sprintf("%d. %s, %d days, Streak: %s", i+1, ex.Name, ex.DurationInDays, joinInts(ex.Streak)))
		}
	}
	if chats := lastN(user.ChatHistory, recentHistoryLimit); len(chats) > 0 {
		lines = append(lines, "", fmt.Sprintf("Recent Conversations (last %d):", recentHistoryLimit))
		for i, turn := range chats {
			lines = append(lines, fmt.Sprintf("%d. User: %q -> CheerPup: %q", i+1, turn.UserMessage, turn.SystemMessage))
		}
	}

	var b strings.Builder
	if len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("The user just said: ")
	b.WriteString(strconv.Quote(feelingText))
	b.WriteString("\n\nPlease respond in the strict JSON format described above.")
	return b.String()
}

func appendProfile(lines []string, user *domain.User) []string {
	if user.Age != nil && *user.Age > 0 {
		lines = append(lines, fmt.Sprintf("- Age: %d", *user.Age))
	}
	if user.Gender != nil && strings.TrimSpace(*user.Gender) != "" {
		lines = append(lines, "- Gender: "+strings.TrimSpace(*user.Gender))
	}
	return lines
}

func appendMedicines(lines []string, medicines []string) []string {
	names := make([]string, 0, len(medicines))
	for _, m := range medicines {
		if v := strings.TrimSpace(m); v != "" {
			names = append(names, v)
		}
	}
	if len(names) == 0 {
		return lines
	}
	return append(lines, "- Medicines: "+strings.Join(names, ", "))
}

func appendBool(lines []string, label string, value *bool) []string {
	if value == nil {
		return lines
	}
	return append(lines, fmt.Sprintf("- %s: %t", label, *value))
}

func appendLastMood(lines []string, user *domain.User) []string {
	mood, ok := user.LastMood()
	if !ok {
		return lines
	}
	return append(lines, fmt.Sprintf("- Last Mood: %s (%d/5)", mood.Mood, mood.MoodRating))
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
