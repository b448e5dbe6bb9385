package sqlstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/video/models"
)

var base = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func newVideo(created time.Time, target media.Resolution) *models.Video {
	return &models.Video{
		ID:               uuid.New(),
		Caption:          "clip",
		SourceName:       "video/26/clip.mp4",
		SourcePath:       "/data/video/26/clip.mp4",
		SourceSize:       2048,
		TargetResolution: target,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}

func createCommitted(t *testing.T, repo *VideoRepo, v *models.Video) {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(ctx, tx, v))
	require.NoError(t, tx.Commit())
}

type foreignTx struct{}

func (foreignTx) Commit() error   { return nil }
func (foreignTx) Rollback() error { return nil }

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(context.Background(), "oracle", "x")
	require.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db))
}

func TestVideoRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepo(openTestDB(t))
	v := newVideo(base, media.Resolution720p)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(ctx, tx, v))

	url := "/media/processed/26/stream_clip/playlist.m3u8"
	v.ProcessedStream = &url
	v.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, repo.UpdateTx(ctx, tx, v))
	require.NoError(t, tx.Commit())

	got, err := repo.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, "clip", got.Caption)
	assert.Equal(t, "video/26/clip.mp4", got.SourceName)
	assert.Equal(t, int64(2048), got.SourceSize)
	assert.Equal(t, media.Resolution720p, got.TargetResolution)
	require.NotNil(t, got.ProcessedStream)
	assert.Equal(t, url, *got.ProcessedStream)
	assert.True(t, got.CreatedAt.Equal(base))
	assert.True(t, got.UpdatedAt.Equal(base.Add(time.Minute)))
}

func TestVideoRepo_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepo(openTestDB(t))
	v := newVideo(base, media.Resolution360p)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(ctx, tx, v))
	require.NoError(t, tx.Rollback())

	_, err = repo.GetByID(ctx, v.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestVideoRepo_DuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepo(openTestDB(t))
	v := newVideo(base, media.Resolution720p)
	createCommitted(t, repo, v)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.ErrorIs(t, repo.CreateTx(ctx, tx, v), models.ErrConflict)
}

func TestVideoRepo_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepo(openTestDB(t))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.ErrorIs(t, repo.UpdateTx(ctx, tx, newVideo(base, media.Resolution720p)), models.ErrNotFound)
}

func TestVideoRepo_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepo(openTestDB(t))

	_, err := repo.GetByID(ctx, uuid.Nil)
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.ErrorIs(t, repo.CreateTx(ctx, tx, nil), models.ErrInvalidArgument)

	require.Error(t, repo.CreateTx(ctx, foreignTx{}, newVideo(base, media.Resolution720p)))
}

func TestVideoRepo_ListNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepo(openTestDB(t))

	oldest := newVideo(base, media.Resolution720p)
	middle := newVideo(base.Add(time.Hour), media.Resolution360p)
	newest := newVideo(base.Add(2*time.Hour), media.Resolution720p)
	for _, v := range []*models.Video{oldest, middle, newest} {
		createCommitted(t, repo, v)
	}

	all, err := repo.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{newest.ID, middle.ID, oldest.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	hd, err := repo.List(ctx, models.ListFilter{TargetResolution: media.Resolution720p})
	require.NoError(t, err)
	require.Len(t, hd, 2)
	assert.Equal(t, newest.ID, hd[0].ID)

	page, err := repo.List(ctx, models.ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, middle.ID, page[0].ID)

	none, err := repo.List(ctx, models.ListFilter{TargetResolution: media.ResolutionOriginal})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestOutboxRepo_PendingAndMarkProcessed(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	videos := NewVideoRepo(db)
	outbox := NewOutboxRepo(db)
	outbox.clock = func() time.Time { return base.Add(time.Hour) }

	v := newVideo(base, media.Resolution720p)
	url := "/media/processed/26/stream_clip/playlist.m3u8"
	v.ProcessedStream = &url
	event := models.NewVideoPublished(v, "processed/26/stream_clip/playlist.m3u8", false, base)

	tx, err := videos.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, videos.CreateTx(ctx, tx, v))
	require.NoError(t, outbox.AddTx(ctx, tx, event))
	require.NoError(t, tx.Commit())

	pending, err := outbox.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	rec := pending[0]
	assert.Equal(t, event.EventID().String(), rec.EventID)
	assert.Equal(t, "VideoPublished", rec.EventType)
	assert.Equal(t, v.ID.String(), rec.AggregateID)
	assert.True(t, rec.OccurredAt.Equal(base))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, url, payload["url"])

	require.NoError(t, outbox.MarkProcessed(ctx, rec.ID))
	require.ErrorIs(t, outbox.MarkProcessed(ctx, rec.ID), models.ErrNotFound)

	pending, err = outbox.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxRepo_RolledBackEventNotPending(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	videos := NewVideoRepo(db)
	outbox := NewOutboxRepo(db)

	v := newVideo(base, media.Resolution720p)
	tx, err := videos.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, outbox.AddTx(ctx, tx, models.NewVideoPublished(v, "p", true, base)))
	require.NoError(t, tx.Rollback())

	pending, err := outbox.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxRepo_PendingOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	videos := NewVideoRepo(db)
	outbox := NewOutboxRepo(db)

	var ids []uuid.UUID
	tx, err := videos.BeginTx(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		e := models.NewVideoPublished(newVideo(base, media.Resolution720p), "p", false, base)
		ids = append(ids, e.EventID())
		require.NoError(t, outbox.AddTx(ctx, tx, e))
	}
	require.NoError(t, tx.Commit())

	pending, err := outbox.GetPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0].String(), pending[0].EventID)
	assert.Equal(t, ids[1].String(), pending[1].EventID)
	assert.Less(t, pending[0].ID, pending[1].ID)
}
