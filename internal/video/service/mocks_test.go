package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/hls-vod/internal/pipeline"
	"github.com/romariotrain/hls-vod/internal/video/models"
	"github.com/romariotrain/hls-vod/internal/video/repository"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) BeginTx(ctx context.Context) (repository.Tx, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(repository.Tx), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) CreateTx(ctx context.Context, tx repository.Tx, v *models.Video) error {
	args := m.Called(ctx, tx, v)
	return args.Error(0)
}

func (m *StoreMock) UpdateTx(ctx context.Context, tx repository.Tx, v *models.Video) error {
	args := m.Called(ctx, tx, v)
	return args.Error(0)
}

func (m *StoreMock) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) List(ctx context.Context, f models.ListFilter) ([]*models.Video, error) {
	args := m.Called(ctx, f)
	if v := args.Get(0); v != nil {
		return v.([]*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

type PipelineMock struct {
	mock.Mock
}

func (m *PipelineMock) Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
	args := m.Called(ctx, job)
	if v := args.Get(0); v != nil {
		return v.(*pipeline.Result), args.Error(1)
	}
	return nil, args.Error(1)
}
