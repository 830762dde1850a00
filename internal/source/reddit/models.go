package reddit

import (
	"encoding/json"
	"time"

	"forum_harvester/internal/domain"
)

const (
	kindComment   = "t1"
	kindLink      = "t3"
	kindSubreddit = "t5"
	kindListing   = "Listing"
	kindMore      = "more"
)

// Thing is the envelope around every Reddit object.
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []Thing `json:"children"`
	} `json:"data"`
}

type SubredditAbout struct {
	DisplayName string `json:"display_name"`
	Subscribers *int64 `json:"subscribers"`
	Description string `json:"description"`
}

type Link struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Selftext    string   `json:"selftext"`
	Author      string   `json:"author"`
	Score       int64    `json:"score"`
	UpvoteRatio *float64 `json:"upvote_ratio"`
	NumComments int64    `json:"num_comments"`
	CreatedUTC  float64  `json:"created_utc"`
	URL         string   `json:"url"`
	Permalink   string   `json:"permalink"`
}

type Comment struct {
	ID         string  `json:"id"`
	ParentID   string  `json:"parent_id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int64   `json:"score"`
	Depth      int     `json:"depth"`
	CreatedUTC float64 `json:"created_utc"`
	// Replies is either "" or a Listing.
	Replies json.RawMessage `json:"replies"`
}

// More stands in for comments the tree response left out. An empty Children
// list means the thread continues on a separate page.
type More struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Depth    int      `json:"depth"`
	Children []string `json:"children"`
}

type moreChildrenResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []Thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

func fromUnix(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

func authorOrDeleted(author string) string {
	if author == "" {
		return "[deleted]"
	}
	return author
}

func (l Link) toDomain() domain.Item {
	return domain.Item{
		ExternalID:   l.ID,
		Title:        l.Title,
		Body:         l.Selftext,
		Author:       authorOrDeleted(l.Author),
		Score:        l.Score,
		UpvoteRatio:  l.UpvoteRatio,
		CommentCount: l.NumComments,
		CreatedAt:    fromUnix(l.CreatedUTC),
		URL:          l.URL,
		Permalink:    l.Permalink,
		IsDeleted:    domain.DeletedMarkers[l.Selftext],
	}
}

func (c Comment) toDomain() domain.SubItem {
	return domain.SubItem{
		ExternalID: c.ID,
		ParentID:   c.ParentID,
		Author:     authorOrDeleted(c.Author),
		Body:       c.Body,
		Score:      c.Score,
		Depth:      c.Depth,
		CreatedAt:  fromUnix(c.CreatedUTC),
		IsDeleted:  domain.DeletedMarkers[c.Body],
	}
}

func (a SubredditAbout) toDomain() domain.SourceMeta {
	meta := domain.SourceMeta{Subscribers: a.Subscribers}
	if a.DisplayName != "" {
		meta.DisplayName = &a.DisplayName
	}
	if a.Description != "" {
		meta.Description = &a.Description
	}
	return meta
}
