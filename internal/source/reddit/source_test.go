package reddit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum_harvester/internal/domain"
)

type obj = map[string]any

func thing(kind string, data obj) obj {
	return obj{"kind": kind, "data": data}
}

func listing(after string, children ...obj) obj {
	if children == nil {
		children = []obj{}
	}
	return obj{"kind": "Listing", "data": obj{"after": after, "children": children}}
}

func link(id string, created int64) obj {
	return thing(kindLink, obj{
		"id":           id,
		"title":        "title " + id,
		"selftext":     "body " + id,
		"author":       "alice",
		"score":        10,
		"upvote_ratio": 0.5,
		"num_comments": 4,
		"created_utc":  float64(created),
		"url":          "https://example.com/" + id,
		"permalink":    "/r/golang/comments/" + id,
	})
}

func comment(id, parent string, depth int, body string, replies ...obj) obj {
	data := obj{
		"id":          id,
		"parent_id":   parent,
		"author":      "bob",
		"body":        body,
		"score":       1,
		"depth":       depth,
		"created_utc": 1700000000.0,
		"replies":     "",
	}
	if len(replies) > 0 {
		data["replies"] = listing("", replies...)
	}
	return thing(kindComment, data)
}

func more(parent string, count int, children ...string) obj {
	if children == nil {
		children = []string{}
	}
	return thing(kindMore, obj{"id": "m", "parent_id": parent, "count": count, "children": children})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newTestSource(t *testing.T, handler http.Handler) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:        srv.URL,
		PageSize:       100,
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		UserAgent:      "test-agent/1.0",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAbout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/about.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		writeJSON(t, w, thing(kindSubreddit, obj{
			"display_name": "golang",
			"subscribers":  250000,
			"description":  "The Go programming language",
		}))
	})
	mux.HandleFunc("/r/private/about.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	src := newTestSource(t, mux)

	meta, err := src.About(context.Background(), "golang")
	require.NoError(t, err)
	require.NotNil(t, meta.DisplayName)
	assert.Equal(t, "golang", *meta.DisplayName)
	assert.Equal(t, int64(250000), *meta.Subscribers)
	assert.Equal(t, "The Go programming language", *meta.Description)

	_, err = src.About(context.Background(), "private")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	_, err = src.About(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestListing_Paginates(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/new.json", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "1", r.URL.Query().Get("raw_json"))
		switch r.URL.Query().Get("after") {
		case "":
			writeJSON(t, w, listing("t3_b", link("a", 300), link("b", 200)))
		case "t3_b":
			writeJSON(t, w, listing("", link("c", 100)))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	})
	src := newTestSource(t, mux)

	var ids []string
	for item, err := range src.Listing(context.Background(), "golang", domain.SortNew, 10) {
		require.NoError(t, err)
		ids = append(ids, item.ExternalID)
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, int32(2), requests.Load())
}

func TestListing_StopsEarly(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/top.json", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "year", r.URL.Query().Get("t"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		writeJSON(t, w, listing("t3_b", link("a", 300), link("b", 200)))
	})
	src := newTestSource(t, mux)

	var items []domain.Item
	for item, err := range src.Listing(context.Background(), "golang", domain.SortTopYear, 2) {
		require.NoError(t, err)
		items = append(items, item)
	}

	require.Len(t, items, 2)
	assert.Equal(t, int32(1), requests.Load())

	first := items[0]
	assert.Equal(t, "title a", first.Title)
	assert.Equal(t, "body a", first.Body)
	assert.Equal(t, int64(10), first.Score)
	assert.Equal(t, 0.5, *first.UpvoteRatio)
	assert.Equal(t, time.Unix(300, 0).UTC(), first.CreatedAt)
	assert.False(t, first.IsDeleted)
}

func TestListing_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/r/flaky/hot.json", func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, listing("", link("a", 1)))
	})
	mux.HandleFunc("/r/down/hot.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	src := newTestSource(t, mux)

	var ids []string
	for item, err := range src.Listing(context.Background(), "flaky", domain.SortHot, 5) {
		require.NoError(t, err)
		ids = append(ids, item.ExternalID)
	}
	assert.Equal(t, []string{"a"}, ids)
	assert.Equal(t, int32(2), requests.Load())

	var lastErr error
	for _, err := range src.Listing(context.Background(), "down", domain.SortHot, 5) {
		lastErr = err
	}
	assert.ErrorIs(t, lastErr, domain.ErrTransport)
}

func TestListing_ClientErrorIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/new.json", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	src := newTestSource(t, mux)

	var lastErr error
	for _, err := range src.Listing(context.Background(), "golang", domain.SortNew, 5) {
		lastErr = err
	}
	assert.ErrorIs(t, lastErr, domain.ErrTransport)
	assert.Equal(t, int32(1), requests.Load())
}

func TestComments_ExpandsFullTree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/comments/p1.json", func(w http.ResponseWriter, r *http.Request) {
		post := listing("", link("p1", 1))
		if r.URL.Query().Get("comment") == "c5" {
			writeJSON(t, w, []obj{post, listing("",
				comment("c5", "t1_c1", 0, "focus",
					comment("c6", "t1_c5", 1, "deep"),
				),
			)})
			return
		}
		writeJSON(t, w, []obj{post, listing("",
			comment("c1", "t3_p1", 0, "top",
				comment("c2", "t1_c1", 1, "[deleted]"),
				comment("c5", "t1_c1", 1, "nested",
					more("t1_c5", 3),
				),
			),
			more("t3_p1", 2, "c3", "c4"),
		)})
	})
	mux.HandleFunc("/api/morechildren", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "t3_p1", r.URL.Query().Get("link_id"))
		assert.Equal(t, "c3,c4", r.URL.Query().Get("children"))
		writeJSON(t, w, obj{"json": obj{"errors": []any{}, "data": obj{"things": []obj{
			comment("c3", "t3_p1", 0, "late"),
			comment("c4", "t1_c3", 1, "later"),
		}}}})
	})
	src := newTestSource(t, mux)

	got := map[string]domain.SubItem{}
	var order []string
	for sub, err := range src.Comments(context.Background(), "p1") {
		require.NoError(t, err)
		got[sub.ExternalID] = sub
		order = append(order, sub.ExternalID)
	}

	assert.Equal(t, []string{"c1", "c2", "c5", "c3", "c4", "c6"}, order)
	assert.True(t, got["c2"].IsDeleted)
	assert.False(t, got["c1"].IsDeleted)
	assert.Equal(t, "t1_c1", got["c2"].ParentID)
	assert.Equal(t, 1, got["c4"].Depth)
	assert.Equal(t, 2, got["c6"].Depth, "continued threads keep absolute depth")
}

func TestComments_MissingPost(t *testing.T) {
	src := newTestSource(t, http.NewServeMux())

	var lastErr error
	for _, err := range src.Comments(context.Background(), "nope") {
		lastErr = err
	}
	assert.ErrorIs(t, lastErr, domain.ErrSourceNotFound)
}
