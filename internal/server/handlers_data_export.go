package server

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cheerpup/apps/backend/internal/domain"
)

var moodCSVHeader = []string{"mood_index", "user_id", "mood", "mood_rating", "created_at_utc"}

func sanitizeCSVFilename(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "user"
	}
	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	sanitized := strings.Trim(b.String(), "_")
	if sanitized == "" {
		return "user"
	}
	return sanitized
}

func writeMoodCSV(user *domain.User) ([]byte, error) {
	var out bytes.Buffer
	writer := csv.NewWriter(&out)
	if err := writer.Write(moodCSVHeader); err != nil {
		return nil, err
	}
	for i, sample := range user.Moods {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			user.ID,
			string(sample.Mood),
			strconv.Itoa(sample.MoodRating),
			sample.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (a *App) exportMoodsCSV(c *gin.Context) {
	user, err := a.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeStoreError(c, err)
		return
	}

	body, err := writeMoodCSV(user)
	if err != nil {
		a.log.Error("mood csv export failed", "user_id", user.ID, "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to build CSV")
		return
	}

	filename := fmt.Sprintf(
		"cheerpup_moods_%s_%s.csv",
		sanitizeCSVFilename(user.ID),
		a.now().UTC().Format("20060102_150405"),
	)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}
