package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"forum_harvester/internal/domain"
)

// storeSuite holds the store tests shared by the SQLite and PostgreSQL runs.
type storeSuite struct {
	suite.Suite
	ctx context.Context
	db  *sqlx.DB
	now time.Time

	sources     *SourceStore
	items       *ItemStore
	subItems    *SubItemStore
	checkpoints *CheckpointStore
	corpus      *CorpusStore
	tx          *TransactionManager
}

func (s *storeSuite) initStores() {
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := WithClock(func() time.Time { return s.now })

	s.sources = NewSourceStore(s.db, clock)
	s.items = NewItemStore(s.db, clock)
	s.subItems = NewSubItemStore(s.db, clock)
	s.checkpoints = NewCheckpointStore(s.db, clock)
	s.corpus = NewCorpusStore(s.db)
	s.tx = NewTransactionManager(s.db)
}

func ptr[T any](v T) *T { return &v }

func (s *storeSuite) item(id string, score int64) *domain.Item {
	return &domain.Item{
		ExternalID:   id,
		Title:        "title " + id,
		Body:         "body " + id,
		Author:       "author-" + id,
		Score:        score,
		UpvoteRatio:  ptr(0.9),
		CommentCount: 3,
		CreatedAt:    s.now.Add(-time.Hour),
		URL:          "https://example.com/" + id,
		Permalink:    "/r/test/comments/" + id,
		SortMethod:   domain.SortMethodDelta,
	}
}

func (s *storeSuite) mustSource(name string) int64 {
	id, err := s.sources.GetOrCreate(s.ctx, name, domain.SourceMeta{})
	s.Require().NoError(err)
	return id
}

func (s *storeSuite) TestSourceStore_GetOrCreate_Idempotent() {
	id1, err := s.sources.GetOrCreate(s.ctx, "golang", domain.SourceMeta{})
	s.NoError(err)
	s.Greater(id1, int64(0))

	id2, err := s.sources.GetOrCreate(s.ctx, "golang", domain.SourceMeta{})
	s.NoError(err)
	s.Equal(id1, id2)

	src, err := s.sources.Get(s.ctx, "golang")
	s.NoError(err)
	s.Require().NotNil(src.DisplayName)
	s.Equal("golang", *src.DisplayName)
}

func (s *storeSuite) TestSourceStore_GetOrCreate_PartialMetadataUpdate() {
	_, err := s.sources.GetOrCreate(s.ctx, "golang", domain.SourceMeta{
		DisplayName: ptr("Go"),
		Subscribers: ptr(int64(100)),
		Description: ptr("The Go programming language"),
	})
	s.NoError(err)

	s.now = s.now.Add(time.Hour)
	_, err = s.sources.GetOrCreate(s.ctx, "golang", domain.SourceMeta{Subscribers: ptr(int64(250))})
	s.NoError(err)

	src, err := s.sources.Get(s.ctx, "golang")
	s.NoError(err)
	s.Equal("Go", *src.DisplayName)
	s.Equal(int64(250), *src.Subscribers)
	s.Equal("The Go programming language", *src.Description)
	s.True(src.UpdatedAt.Equal(s.now), "updated_at %s", src.UpdatedAt)
	s.True(src.CreatedAt.Before(src.UpdatedAt))
}

func (s *storeSuite) TestSourceStore_Get_NotFound() {
	_, err := s.sources.Get(s.ctx, "missing")
	s.True(errors.Is(err, domain.ErrSourceNotFound))
}

func (s *storeSuite) TestItemStore_Upsert_Idempotent() {
	sourceID := s.mustSource("test")

	first := s.item("abc", 10)
	id1, created, err := s.items.Upsert(s.ctx, first, sourceID)
	s.NoError(err)
	s.True(created)

	s.now = s.now.Add(time.Hour)
	second := s.item("abc", 42)
	second.Title = "edited title"
	second.Author = "someone-else"
	second.CommentCount = 9
	id2, created, err := s.items.Upsert(s.ctx, second, sourceID)
	s.NoError(err)
	s.False(created)
	s.Equal(id1, id2)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM items"))
	s.Equal(1, count)

	stored, err := s.items.GetByExternalID(s.ctx, "abc")
	s.NoError(err)
	s.Require().NotNil(stored)
	s.Equal(int64(42), stored.Score)
	s.Equal(int64(9), stored.CommentCount)
	s.Equal("title abc", stored.Title)
	s.Equal("author-abc", stored.Author)
	s.True(stored.UpdatedAt.Equal(s.now))
	s.True(stored.HarvestedAt.Before(stored.UpdatedAt))
}

func (s *storeSuite) TestItemStore_Upsert_KeepsOriginalSource() {
	first := s.mustSource("first")
	second := s.mustSource("second")

	_, _, err := s.items.Upsert(s.ctx, s.item("shared", 1), first)
	s.NoError(err)
	_, created, err := s.items.Upsert(s.ctx, s.item("shared", 2), second)
	s.NoError(err)
	s.False(created)

	stored, err := s.items.GetByExternalID(s.ctx, "shared")
	s.NoError(err)
	s.Equal(first, stored.SourceID)
}

func (s *storeSuite) TestItemStore_GetByExternalID_Missing() {
	stored, err := s.items.GetByExternalID(s.ctx, "nope")
	s.NoError(err)
	s.Nil(stored)
}

func (s *storeSuite) TestSubItemStore_Upsert() {
	itemID, _, err := s.items.Upsert(s.ctx, s.item("post", 1), s.mustSource("test"))
	s.Require().NoError(err)

	sub := &domain.SubItem{
		ExternalID: "c1",
		ParentID:   "t3_post",
		Author:     "commenter",
		Body:       "first!",
		Score:      1,
		CreatedAt:  s.now,
	}
	id1, created, err := s.subItems.Upsert(s.ctx, sub, itemID)
	s.NoError(err)
	s.True(created)

	sub.Score = 7
	sub.Body = "edited"
	id2, created, err := s.subItems.Upsert(s.ctx, sub, itemID)
	s.NoError(err)
	s.False(created)
	s.Equal(id1, id2)

	subs, err := s.corpus.ListSubItems(s.ctx, itemID)
	s.NoError(err)
	s.Require().Len(subs, 1)
	s.Equal(int64(7), subs[0].Score)
	s.Equal("first!", subs[0].Body)
	s.Equal("t3_post", subs[0].ParentID)
}

func (s *storeSuite) TestCheckpointStore_GetAbsent() {
	cp, err := s.checkpoints.Get(s.ctx, s.mustSource("test"))
	s.NoError(err)
	s.Nil(cp)
}

func (s *storeSuite) TestCheckpointStore_CreateThenMerge() {
	sourceID := s.mustSource("test")

	err := s.checkpoints.Update(s.ctx, domain.CheckpointUpdate{
		SourceID:      sourceID,
		LastItemID:    ptr("i10"),
		LastSubItemID: ptr("c5"),
		ItemsAdded:    2,
		SubItemsAdded: 5,
		Mode:          domain.ModeDelta,
	})
	s.NoError(err)

	cp, err := s.checkpoints.Get(s.ctx, sourceID)
	s.NoError(err)
	s.Require().NotNil(cp)
	s.Equal("i10", cp.Frontier())
	s.Equal(int64(2), cp.ItemsHarvested)
	s.Equal(domain.ModeDelta, cp.Mode)
	s.True(cp.LastHarvestAt.Equal(s.now))

	s.now = s.now.Add(2 * time.Hour)
	err = s.checkpoints.Update(s.ctx, domain.CheckpointUpdate{
		SourceID:      sourceID,
		ItemsAdded:    3,
		SubItemsAdded: 1,
		Mode:          domain.ModeFull,
	})
	s.NoError(err)

	cp, err = s.checkpoints.Get(s.ctx, sourceID)
	s.NoError(err)
	s.Equal("i10", cp.Frontier(), "absent frontier keeps previous value")
	s.Require().NotNil(cp.LastSubItemID)
	s.Equal("c5", *cp.LastSubItemID)
	s.Equal(int64(5), cp.ItemsHarvested)
	s.Equal(int64(6), cp.SubItemsHarvested)
	s.Equal(domain.ModeFull, cp.Mode)
	s.True(cp.LastHarvestAt.Equal(s.now))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM harvest_checkpoints"))
	s.Equal(1, count)

	byName, err := s.checkpoints.GetBySourceName(s.ctx, "test")
	s.NoError(err)
	s.Require().NotNil(byName)
	s.Equal(cp.ID, byName.ID)
}

func (s *storeSuite) TestCheckpointStore_GetBySourceName_Unknown() {
	cp, err := s.checkpoints.GetBySourceName(s.ctx, "never-seen")
	s.NoError(err)
	s.Nil(cp)

	_, err = s.sources.Get(s.ctx, "never-seen")
	s.ErrorIs(err, domain.ErrSourceNotFound, "lookup must not create the source")
}

func (s *storeSuite) TestCorpusStore_Stats() {
	a := s.mustSource("alpha")
	s.mustSource("beta")

	itemID, _, err := s.items.Upsert(s.ctx, s.item("p1", 1), a)
	s.Require().NoError(err)
	_, _, err = s.items.Upsert(s.ctx, s.item("p2", 1), a)
	s.Require().NoError(err)
	_, _, err = s.subItems.Upsert(s.ctx, &domain.SubItem{ExternalID: "c1", ParentID: "t3_p1", Body: "x", CreatedAt: s.now}, itemID)
	s.Require().NoError(err)
	s.Require().NoError(s.checkpoints.Update(s.ctx, domain.CheckpointUpdate{
		SourceID: a, LastItemID: ptr("p2"), ItemsAdded: 2, SubItemsAdded: 1, Mode: domain.ModeDelta,
	}))

	stats, err := s.corpus.Stats(s.ctx)
	s.NoError(err)
	s.Equal(2, stats.Sources)
	s.Equal(2, stats.Items)
	s.Equal(1, stats.SubItems)
	s.Require().Len(stats.PerSource, 2)

	alpha := stats.PerSource[0]
	s.Equal("alpha", alpha.Name)
	s.Equal(2, alpha.Items)
	s.Equal(1, alpha.SubItems)
	s.Equal(domain.ModeDelta, alpha.Mode)
	s.Require().NotNil(alpha.LastHarvestAt)
	s.True(alpha.LastHarvestAt.Equal(s.now))

	beta := stats.PerSource[1]
	s.Equal("beta", beta.Name)
	s.Equal(0, beta.Items)
	s.Nil(beta.LastHarvestAt)
}

func (s *storeSuite) TestCorpusStore_ListItems_Filters() {
	a := s.mustSource("alpha")
	b := s.mustSource("beta")

	old := s.item("old", 100)
	old.CreatedAt = s.now.Add(-48 * time.Hour)
	recentLow := s.item("recent-low", 1)
	recentHigh := s.item("recent-high", 50)
	recentHigh.CreatedAt = s.now.Add(-30 * time.Minute)
	other := s.item("other", 500)

	for _, it := range []*domain.Item{old, recentLow, recentHigh} {
		_, _, err := s.items.Upsert(s.ctx, it, a)
		s.Require().NoError(err)
	}
	_, _, err := s.items.Upsert(s.ctx, other, b)
	s.Require().NoError(err)

	items, err := s.corpus.ListItems(s.ctx, domain.ItemFilter{
		Source:   "alpha",
		Since:    s.now.Add(-24 * time.Hour),
		MinScore: ptr(int64(10)),
	})
	s.NoError(err)
	s.Require().Len(items, 1)
	s.Equal("recent-high", items[0].ExternalID)

	items, err = s.corpus.ListItems(s.ctx, domain.ItemFilter{Source: "alpha"})
	s.NoError(err)
	s.Require().Len(items, 3)
	s.Equal("recent-high", items[0].ExternalID, "newest first")
	s.Equal("old", items[2].ExternalID)

	items, err = s.corpus.ListItems(s.ctx, domain.ItemFilter{Limit: 2})
	s.NoError(err)
	s.Len(items, 2)
}

func (s *storeSuite) TestTransaction_Rollback() {
	sourceID := s.mustSource("test")
	itemID, _, err := s.items.Upsert(s.ctx, s.item("post", 1), sourceID)
	s.Require().NoError(err)

	err = s.tx.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, _, err := s.subItems.Upsert(ctx, &domain.SubItem{ExternalID: "c1", Body: "x", CreatedAt: s.now}, itemID); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	subs, err := s.corpus.ListSubItems(s.ctx, itemID)
	s.NoError(err)
	s.Empty(subs)
}

func (s *storeSuite) TestTransaction_Commit() {
	sourceID := s.mustSource("test")
	itemID, _, err := s.items.Upsert(s.ctx, s.item("post", 1), sourceID)
	s.Require().NoError(err)

	err = s.tx.WithTransaction(s.ctx, func(ctx context.Context) error {
		for _, id := range []string{"c1", "c2"} {
			if _, _, err := s.subItems.Upsert(ctx, &domain.SubItem{ExternalID: id, Body: id, CreatedAt: s.now}, itemID); err != nil {
				return err
			}
		}
		return nil
	})
	s.NoError(err)

	subs, err := s.corpus.ListSubItems(s.ctx, itemID)
	s.NoError(err)
	s.Len(subs, 2)
}

func (s *storeSuite) truncate() {
	for _, table := range []string{"harvest_checkpoints", "sub_items", "items", "sources"} {
		_, err := s.db.ExecContext(s.ctx, "DELETE FROM "+table)
		s.Require().NoError(err)
	}
}
