// Package music filters the music suggestion returned by the model.
package music

import (
	"context"
	"net/url"
	"strings"

	"cheerpup/apps/backend/internal/config"
	"cheerpup/apps/backend/internal/domain"
	"cheerpup/apps/backend/internal/logger"
)

// Verifier reports whether a video can currently be played by anyone.
type Verifier interface {
	Available(ctx context.Context, videoID string) (bool, error)
}

// IsLikelyYouTubeLink accepts watch URLs and youtu.be short links.
func IsLikelyYouTubeLink(link string) bool {
	return strings.Contains(link, "youtube.com/watch?v=") || strings.Contains(link, "youtu.be/")
}

// VideoID extracts the video id from a watch URL or short link.
func VideoID(link string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(parsed.Path, "/")
	case "youtube.com", "music.youtube.com":
		id = parsed.Query().Get("v")
	}
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

type Filter struct {
	verifier Verifier
	log      *logger.Logger
}

// NewFilter builds a filter; verifier may be nil, in which case links are
// only checked for shape.
func NewFilter(verifier Verifier, log *logger.Logger) *Filter {
	if log == nil {
		log = logger.Nop()
	}
	return &Filter{verifier: verifier, log: log.With("component", "music")}
}

// Apply shapes a suggestion for the given mode. Title mode keeps only the
// title. Link mode passes a title-only suggestion through unchecked; a
// suggestion carrying a link keeps title and link only when the link passes
// validation, and otherwise comes back empty.
func (f *Filter) Apply(ctx context.Context, mode string, suggestion *domain.MusicSuggestion) *domain.MusicSuggestion {
	if mode == config.MusicModeTitle {
		if suggestion == nil || suggestion.Title == nil {
			return &domain.MusicSuggestion{}
		}
		title := *suggestion.Title
		return &domain.MusicSuggestion{Title: &title}
	}

	if suggestion == nil {
		return &domain.MusicSuggestion{}
	}
	if suggestion.Link == nil {
		if suggestion.Title == nil {
			return &domain.MusicSuggestion{}
		}
		title := *suggestion.Title
		return &domain.MusicSuggestion{Title: &title}
	}
	if !IsLikelyYouTubeLink(*suggestion.Link) {
		return &domain.MusicSuggestion{}
	}
	if f.verifier != nil {
		if id, ok := VideoID(*suggestion.Link); ok {
			available, err := f.verifier.Available(ctx, id)
			switch {
			case err != nil:
				f.log.Warn("video availability check failed (keeping link)", "video_id", id, "error", err)
			case !available:
				return &domain.MusicSuggestion{}
			}
		}
	}
	link := *suggestion.Link
	out := &domain.MusicSuggestion{Link: &link}
	if suggestion.Title != nil {
		title := *suggestion.Title
		out.Title = &title
	}
	return out
}
