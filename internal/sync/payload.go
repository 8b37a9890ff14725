package sync

import (
	"fmt"

	"github.com/cloudsub/subsync/internal/subscription"
)

// Action identifies the direction of a subscription change.
type Action string

const (
	// ActionAdd propagates a newly created subscription.
	ActionAdd Action = "add"

	// ActionDelete propagates a removed subscription.
	ActionDelete Action = "delete"
)

// Payload is the outbound wire message. The API key travels in the body
// rather than a header so the remote side needs no auth middleware.
type Payload struct {
	Action Action      `json:"action"`
	APIKey string      `json:"api_key"`
	Data   PayloadData `json:"data"`
}

// PayloadData carries the subscription fields the remote mirror consumes.
// Optional fields are pointers so absent values marshal as null.
type PayloadData struct {
	TMDBID       int64   `json:"tmdb_id"`
	Type         Kind    `json:"type"`
	Title        string  `json:"title"`
	Year         *string `json:"year"`
	Season       *int    `json:"season"`
	DoubanID     *string `json:"douban_id"`
	TotalEpisode *int    `json:"total_episode"`
	StartEpisode *int    `json:"start_episode"`
}

// BuildPayload assembles the wire message for one change. It never fails;
// missing optional fields marshal as null. Season is only populated for TV.
func BuildPayload(action Action, apiKey string, kind Kind, sub *subscription.Subscription) *Payload {
	data := PayloadData{
		TMDBID: sub.TMDBID,
		Type:   kind,
		Title:  sub.Name,
	}

	if sub.Year != "" {
		year := sub.Year
		data.Year = &year
	}
	if kind == KindTV && sub.Season > 0 {
		season := sub.Season
		data.Season = &season
	}
	if sub.DoubanID != "" {
		doubanID := sub.DoubanID
		data.DoubanID = &doubanID
	}
	if sub.TotalEpisode > 0 {
		total := sub.TotalEpisode
		data.TotalEpisode = &total
	}
	if sub.StartEpisode > 0 {
		start := sub.StartEpisode
		data.StartEpisode = &start
	}

	return &Payload{
		Action: action,
		APIKey: apiKey,
		Data:   data,
	}
}

// DedupKey identifies one logical change for duplicate suppression. Season
// participates only for TV, so per-season changes of one show stay distinct.
func DedupKey(action Action, kind Kind, sub *subscription.Subscription) string {
	key := fmt.Sprintf("%s_%s_%d", action, kind, sub.TMDBID)
	if kind == KindTV && sub.Season > 0 {
		key = fmt.Sprintf("%s_%d", key, sub.Season)
	}
	return key
}
