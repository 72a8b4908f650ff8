package music

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeVerifier checks video status through the YouTube Data API v3.
type YouTubeVerifier struct {
	svc *youtube.Service
}

func NewYouTubeVerifier(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeVerifier, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTubeVerifier{svc: svc}, nil
}

// Available is true when the video exists, is public, and is not blocked
// from embedding.
func (v *YouTubeVerifier) Available(ctx context.Context, videoID string) (bool, error) {
	resp, err := v.svc.Videos.List([]string{"status"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return false, err
	}
	if len(resp.Items) == 0 || resp.Items[0].Status == nil {
		return false, nil
	}
	status := resp.Items[0].Status
	return status.PrivacyStatus == "public" && status.UploadStatus != "rejected" && status.UploadStatus != "deleted", nil
}
