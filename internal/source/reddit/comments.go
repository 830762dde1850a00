package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"forum_harvester/internal/domain"
)

// moreChildrenBatch is the most ids /api/morechildren accepts per call.
const moreChildrenBatch = 100

// Comments yields the complete comment tree of a post, depth first, expanding
// every "load more" stub and "continue this thread" link.
func (s *Source) Comments(ctx context.Context, itemExternalID string) iter.Seq2[domain.SubItem, error] {
	return func(yield func(domain.SubItem, error) bool) {
		w := newTreeWalker(yield)

		children, err := s.commentPage(ctx, itemExternalID, "")
		if err != nil {
			yield(domain.SubItem{}, fmt.Errorf("comments %s: %w", itemExternalID, err))
			return
		}
		if !w.walk(children, 0) {
			return
		}

		for w.hasWork() {
			if len(w.pending) > 0 {
				n := min(len(w.pending), moreChildrenBatch)
				batch := w.pending[:n]
				w.pending = w.pending[n:]

				things, err := s.moreChildren(ctx, itemExternalID, batch)
				if err != nil {
					yield(domain.SubItem{}, fmt.Errorf("expand comments %s: %w", itemExternalID, err))
					return
				}
				if !w.walk(things, 0) {
					return
				}
				continue
			}

			parent := w.continued[0]
			w.continued = w.continued[1:]

			things, err := s.commentPage(ctx, itemExternalID, parent)
			if err != nil {
				yield(domain.SubItem{}, fmt.Errorf("continue thread %s: %w", parent, err))
				return
			}
			if !w.walk(things, w.depth[parent]) {
				return
			}
		}

		s.logger.Debug("fetched comment tree", "item", itemExternalID, "comments", len(w.seen))
	}
}

// commentPage returns the comment listing of a post, or of the thread rooted
// at focus when focus is set.
func (s *Source) commentPage(ctx context.Context, linkID, focus string) ([]Thing, error) {
	query := url.Values{}
	query.Set("limit", "500")
	if focus != "" {
		query.Set("comment", focus)
	}

	var pages []Listing
	if err := s.get(ctx, "/comments/"+url.PathEscape(linkID)+".json", query, &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, nil
	}
	return pages[1].Data.Children, nil
}

func (s *Source) moreChildren(ctx context.Context, linkID string, ids []string) ([]Thing, error) {
	query := url.Values{}
	query.Set("api_type", "json")
	query.Set("link_id", "t3_"+linkID)
	query.Set("children", strings.Join(ids, ","))
	query.Set("limit_children", "false")

	var resp moreChildrenResponse
	if err := s.get(ctx, "/api/morechildren", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.JSON.Errors) > 0 {
		return nil, fmt.Errorf("%w: morechildren: %v", domain.ErrTransport, resp.JSON.Errors)
	}
	return resp.JSON.Data.Things, nil
}

type treeWalker struct {
	yield     func(domain.SubItem, error) bool
	seen      map[string]bool
	queued    map[string]bool
	depth     map[string]int
	pending   []string
	continued []string
}

func newTreeWalker(yield func(domain.SubItem, error) bool) *treeWalker {
	return &treeWalker{
		yield:  yield,
		seen:   make(map[string]bool),
		queued: make(map[string]bool),
		depth:  make(map[string]int),
	}
}

func (w *treeWalker) hasWork() bool {
	return len(w.pending) > 0 || len(w.continued) > 0
}

// walk yields unseen comments and queues the stubs it meets. Depths are
// shifted by offset for threads fetched on their own page. It returns false
// once the consumer stops.
func (w *treeWalker) walk(things []Thing, offset int) bool {
	for _, t := range things {
		switch t.Kind {
		case kindComment:
			var c Comment
			if err := json.Unmarshal(t.Data, &c); err != nil {
				w.yield(domain.SubItem{}, fmt.Errorf("decode comment: %w", err))
				return false
			}
			c.Depth += offset

			if !w.seen[c.ID] {
				w.seen[c.ID] = true
				w.depth[c.ID] = c.Depth
				if !w.yield(c.toDomain(), nil) {
					return false
				}
			}

			if replies := repliesOf(c); replies != nil {
				if !w.walk(replies, offset) {
					return false
				}
			}

		case kindMore:
			var m More
			if err := json.Unmarshal(t.Data, &m); err != nil {
				w.yield(domain.SubItem{}, fmt.Errorf("decode more: %w", err))
				return false
			}
			w.queue(m)
		}
	}
	return true
}

func (w *treeWalker) queue(m More) {
	if len(m.Children) == 0 {
		parent, ok := strings.CutPrefix(m.ParentID, kindComment+"_")
		if ok && !w.queued[parent] {
			w.queued[parent] = true
			w.continued = append(w.continued, parent)
		}
		return
	}
	for _, id := range m.Children {
		if w.seen[id] || w.queued[id] {
			continue
		}
		w.queued[id] = true
		w.pending = append(w.pending, id)
	}
}

func repliesOf(c Comment) []Thing {
	if len(c.Replies) == 0 || c.Replies[0] != '{' {
		return nil
	}
	var l Listing
	if err := json.Unmarshal(c.Replies, &l); err != nil {
		return nil
	}
	return l.Data.Children
}
