package platform

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// InstagramBaseURL is the default Instagram Graph API root.
const InstagramBaseURL = "https://graph.instagram.com"

// Instagram publishes a single-image post through a media container.
type Instagram struct {
	api *apiClient
}

// NewInstagram creates an Instagram publisher.
func NewInstagram(cfg HTTPConfig) *Instagram {
	return &Instagram{api: newAPIClient(core.PlatformInstagram, InstagramBaseURL, cfg)}
}

type instagramContainer struct {
	ImageURL    string `json:"image_url"`
	Caption     string `json:"caption"`
	AccessToken string `json:"access_token"`
}

type instagramPublish struct {
	CreationID  string `json:"creation_id"`
	AccessToken string `json:"access_token"`
}

type instagramID struct {
	ID string `json:"id"`
}

// Publish creates a media container for the first media URL and publishes it.
func (i *Instagram) Publish(ctx context.Context, content string, mediaURLs []string, creds core.Credentials) (string, error) {
	if err := i.api.limits.Check(content, mediaURLs); err != nil {
		return "", err
	}
	if len(mediaURLs) == 0 {
		return "", errors.New("instagram requires at least one image")
	}

	var container instagramID
	if _, err := i.api.request(ctx, http.MethodPost, "/me/media", "",
		instagramContainer{ImageURL: mediaURLs[0], Caption: content, AccessToken: creds.AccessToken},
		&container, nil); err != nil {
		return "", errors.Wrap(err, "create instagram media container")
	}
	if container.ID == "" {
		return "", errors.New("create instagram media container: response carried no id")
	}

	var published instagramID
	if _, err := i.api.request(ctx, http.MethodPost, "/me/media_publish", "",
		instagramPublish{CreationID: container.ID, AccessToken: creds.AccessToken},
		&published, nil); err != nil {
		return "", errors.Wrap(err, "publish instagram media")
	}
	if published.ID == "" {
		return "", errors.New("publish instagram media: response carried no id")
	}
	return published.ID, nil
}
