package platform

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// TwitterBaseURL is the default Twitter API root.
const TwitterBaseURL = "https://api.twitter.com"

// Twitter publishes tweets through the v2 API with a user access token.
type Twitter struct {
	api *apiClient
}

// NewTwitter creates a Twitter publisher.
func NewTwitter(cfg HTTPConfig) *Twitter {
	return &Twitter{api: newAPIClient(core.PlatformTwitter, TwitterBaseURL, cfg)}
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Publish posts content as a tweet. Media URLs are appended as links.
func (t *Twitter) Publish(ctx context.Context, content string, mediaURLs []string, creds core.Credentials) (string, error) {
	if err := t.api.limits.Check(content, mediaURLs); err != nil {
		return "", err
	}

	text := content
	if len(mediaURLs) > 0 {
		text = strings.TrimSpace(content + " " + strings.Join(mediaURLs, " "))
	}

	var out tweetResponse
	if _, err := t.api.request(ctx, http.MethodPost, "/2/tweets", creds.AccessToken, tweetRequest{Text: text}, &out, nil); err != nil {
		return "", errors.Wrap(err, "create tweet")
	}
	if out.Data.ID == "" {
		return "", errors.New("create tweet: response carried no id")
	}
	return out.Data.ID, nil
}
