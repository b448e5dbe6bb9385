package main

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/video/models"
)

type reprocessorMock struct {
	mock.Mock
}

func (m *reprocessorMock) Reprocess(ctx context.Context, id uuid.UUID, target *media.Resolution) (*models.Video, error) {
	args := m.Called(ctx, id, target)
	v, _ := args.Get(0).(*models.Video)
	return v, args.Error(1)
}

func TestIDList_Set(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	var ids idList

	require.NoError(t, ids.Set(a.String()+", "+b.String()))
	require.NoError(t, ids.Set(c.String()))
	assert.Equal(t, idList{a, b, c}, ids)
	assert.Equal(t, a.String()+","+b.String()+","+c.String(), ids.String())

	require.Error(t, ids.Set("not-a-uuid"))
}

func TestParseTarget(t *testing.T) {
	r, err := parseTarget("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = parseTarget("1080P")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, media.Resolution1080p, *r)

	_, err = parseTarget("4k")
	require.Error(t, err)
}

func TestReprocessAll_ContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	good, bad := uuid.New(), uuid.New()
	target := media.Resolution360p
	url := "/media/processed/26/stream_clip/playlist.m3u8"

	svc := &reprocessorMock{}
	svc.On("Reprocess", ctx, bad, &target).Return(nil, errors.New("encode failed")).Once()
	svc.On("Reprocess", ctx, good, &target).
		Return(&models.Video{ID: good, TargetResolution: target, ProcessedStream: &url}, nil).Once()

	err := reprocessAll(ctx, svc, []uuid.UUID{bad, good}, &target, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	svc.AssertExpectations(t)
}

func TestReprocessAll_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &reprocessorMock{}
	err := reprocessAll(ctx, svc, []uuid.UUID{uuid.New()}, nil, zerolog.Nop())
	require.ErrorIs(t, err, context.Canceled)
	svc.AssertNotCalled(t, "Reprocess", mock.Anything, mock.Anything, mock.Anything)
}
