package platform

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// LinkedInBaseURL is the default LinkedIn API root.
const LinkedInBaseURL = "https://api.linkedin.com/v2"

// LinkedIn publishes UGC posts on behalf of a member.
type LinkedIn struct {
	api *apiClient
}

// NewLinkedIn creates a LinkedIn publisher.
func NewLinkedIn(cfg HTTPConfig) *LinkedIn {
	return &LinkedIn{api: newAPIClient(core.PlatformLinkedIn, LinkedInBaseURL, cfg)}
}

type linkedInText struct {
	Text string `json:"text"`
}

type linkedInMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

type linkedInShare struct {
	ShareCommentary    linkedInText    `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []linkedInMedia `json:"media,omitempty"`
}

type linkedInPost struct {
	Author          string                   `json:"author"`
	LifecycleState  string                   `json:"lifecycleState"`
	SpecificContent map[string]linkedInShare `json:"specificContent"`
	Visibility      map[string]string        `json:"visibility"`
}

type linkedInID struct {
	ID string `json:"id"`
}

// Publish creates a public post. The member id comes from the stored account
// id, or from the profile endpoint when the account id is empty.
func (l *LinkedIn) Publish(ctx context.Context, content string, mediaURLs []string, creds core.Credentials) (string, error) {
	if err := l.api.limits.Check(content, mediaURLs); err != nil {
		return "", err
	}

	memberID := creds.AccountID
	if memberID == "" {
		var me linkedInID
		if _, err := l.api.request(ctx, http.MethodGet, "/me", creds.AccessToken, nil, &me, nil); err != nil {
			return "", errors.Wrap(err, "fetch linkedin profile")
		}
		memberID = me.ID
	}
	if memberID == "" {
		return "", errors.New("linkedin profile has no id")
	}

	share := linkedInShare{
		ShareCommentary:    linkedInText{Text: content},
		ShareMediaCategory: "NONE",
	}
	if len(mediaURLs) > 0 {
		share.ShareMediaCategory = "ARTICLE"
		for _, u := range mediaURLs {
			share.Media = append(share.Media, linkedInMedia{Status: "READY", OriginalURL: u})
		}
	}

	post := linkedInPost{
		Author:          "urn:li:person:" + memberID,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]linkedInShare{"com.linkedin.ugc.ShareContent": share},
		Visibility:      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	var out linkedInID
	header, err := l.api.request(ctx, http.MethodPost, "/ugcPosts", creds.AccessToken, post, &out,
		map[string]string{"X-Restli-Protocol-Version": "2.0.0"})
	if err != nil {
		return "", errors.Wrap(err, "create linkedin post")
	}
	if id := header.Get("X-Restli-Id"); id != "" {
		return id, nil
	}
	if out.ID == "" {
		return "", errors.New("create linkedin post: response carried no id")
	}
	return out.ID, nil
}
