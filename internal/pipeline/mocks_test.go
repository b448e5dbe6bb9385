package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/hls-vod/internal/catalog"
	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/media/publish"
	"github.com/romariotrain/hls-vod/internal/media/transcode"
)

type ValidatorMock struct {
	mock.Mock
}

func (m *ValidatorMock) Validate(ctx context.Context, src media.Source) error {
	args := m.Called(ctx, src)
	return args.Error(0)
}

type PolicyMock struct {
	mock.Mock
}

func (m *PolicyMock) Resolve(ctx context.Context, target media.Resolution, sourcePath string) (media.EncodeParams, error) {
	args := m.Called(ctx, target, sourcePath)
	return args.Get(0).(media.EncodeParams), args.Error(1)
}

type TranscoderMock struct {
	mock.Mock
}

func (m *TranscoderMock) StagingDir(src media.Source) string {
	args := m.Called(src)
	return args.String(0)
}

func (m *TranscoderMock) Transcode(ctx context.Context, sourcePath string, params media.EncodeParams, stagingDir string) (*transcode.Output, error) {
	args := m.Called(ctx, sourcePath, params, stagingDir)
	if v := args.Get(0); v != nil {
		return v.(*transcode.Output), args.Error(1)
	}
	return nil, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, stagingDir string, src media.Source) (*publish.Published, error) {
	args := m.Called(ctx, stagingDir, src)
	if v := args.Get(0); v != nil {
		return v.(*publish.Published), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PublisherMock) Unpublish(pub *publish.Published) error {
	args := m.Called(pub)
	return args.Error(0)
}

type CatalogMock struct {
	mock.Mock
}

func (m *CatalogMock) Sync(ctx context.Context, rec catalog.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
