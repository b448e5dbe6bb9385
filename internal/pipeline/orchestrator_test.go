package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/hls-vod/internal/catalog"
	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/media/policy"
	"github.com/romariotrain/hls-vod/internal/media/publish"
	"github.com/romariotrain/hls-vod/internal/media/transcode"
	"github.com/romariotrain/hls-vod/internal/media/validate"
	"github.com/romariotrain/hls-vod/internal/testsupport/fakebin"
)

type fixture struct {
	validator  *ValidatorMock
	policy     *PolicyMock
	transcoder *TranscoderMock
	publisher  *PublisherMock
	catalog    *CatalogMock
	orch       *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		validator:  new(ValidatorMock),
		policy:     new(PolicyMock),
		transcoder: new(TranscoderMock),
		publisher:  new(PublisherMock),
		catalog:    new(CatalogMock),
	}
	orch, err := New(Config{
		Validator:  f.validator,
		Policy:     f.policy,
		Transcoder: f.transcoder,
		Publisher:  f.publisher,
		Catalog:    f.catalog,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

var (
	src  = media.Source{Name: "video/26/clip.mp4", Path: "/uploads/video/26/clip.mp4", Size: 1024}
	p720 = media.EncodeParams{Width: 1280, Height: 720, MaxBitrate: 2500, BufferSize: 5000, Scale: true}
	out  = &transcode.Output{Dir: "/staging/stream_clip", Playlist: "/staging/stream_clip/playlist.m3u8"}
	pub  = &publish.Published{
		URL:          "/media/processed/26/stream_clip/playlist.m3u8",
		Dir:          "/public/processed/26/stream_clip",
		RelativePath: "processed/26/stream_clip/playlist.m3u8",
	}
)

func job(finalize FinalizeFunc) Job {
	return Job{VideoID: "v1", Title: "Clip", Source: src, Target: media.Resolution720p, Finalize: finalize}
}

func (f *fixture) expectThroughPublish() {
	f.validator.On("Validate", mock.Anything, src).Return(nil).Once()
	f.policy.On("Resolve", mock.Anything, media.Resolution720p, src.Path).Return(p720, nil).Once()
	f.transcoder.On("StagingDir", src).Return(out.Dir).Once()
	f.transcoder.On("Transcode", mock.Anything, src.Path, p720, out.Dir).Return(out, nil).Once()
	f.publisher.On("Publish", mock.Anything, out.Dir, src).Return(pub, nil).Once()
}

func TestRun_Done(t *testing.T) {
	f := newFixture(t)
	f.expectThroughPublish()
	f.catalog.On("Sync", mock.Anything, catalog.Record{
		VideoID:      "v1",
		Title:        "Clip",
		URL:          pub.URL,
		RelativePath: pub.RelativePath,
	}).Return(nil).Once()

	var finalized *publish.Published
	res, err := f.orch.Run(context.Background(), job(func(_ context.Context, p *publish.Published) error {
		finalized = p
		return nil
	}))

	require.NoError(t, err)
	assert.Equal(t, Done, res.State)
	assert.Equal(t, pub, res.Published)
	assert.Equal(t, p720, res.Params)
	assert.NoError(t, res.CatalogErr)
	assert.Equal(t, pub, finalized)
	f.validator.AssertExpectations(t)
	f.policy.AssertExpectations(t)
	f.transcoder.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
	f.catalog.AssertExpectations(t)
}

func TestRun_ValidationFailureStopsEarly(t *testing.T) {
	f := newFixture(t)
	f.validator.On("Validate", mock.Anything, src).
		Return(fmt.Errorf("%w: too big", media.ErrFileTooLarge)).Once()

	finalizeCalled := false
	res, err := f.orch.Run(context.Background(), job(func(context.Context, *publish.Published) error {
		finalizeCalled = true
		return nil
	}))

	require.ErrorIs(t, err, media.ErrFileTooLarge)
	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, Validating, failure.State)
	assert.Equal(t, Failed, res.State)
	assert.False(t, finalizeCalled)
	f.policy.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
	f.transcoder.AssertNotCalled(t, "Transcode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_EncodeFailure(t *testing.T) {
	f := newFixture(t)
	f.validator.On("Validate", mock.Anything, src).Return(nil).Once()
	f.policy.On("Resolve", mock.Anything, media.Resolution720p, src.Path).Return(p720, nil).Once()
	f.transcoder.On("StagingDir", src).Return(out.Dir).Once()
	f.transcoder.On("Transcode", mock.Anything, src.Path, p720, out.Dir).
		Return(nil, media.NewEncodeError(1, "Invalid data found", errors.New("exit status 1"))).Once()

	res, err := f.orch.Run(context.Background(), job(nil))

	require.ErrorIs(t, err, media.ErrEncodeFailed)
	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, Encoding, failure.State)
	assert.Equal(t, Failed, res.State)
	assert.Contains(t, err.Error(), "Invalid data found")
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.catalog.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything)
}

func TestRun_EncodeTimeout(t *testing.T) {
	f := newFixture(t)
	f.validator.On("Validate", mock.Anything, src).Return(nil).Once()
	f.policy.On("Resolve", mock.Anything, media.Resolution720p, src.Path).Return(p720, nil).Once()
	f.transcoder.On("StagingDir", src).Return(out.Dir).Once()
	f.transcoder.On("Transcode", mock.Anything, src.Path, p720, out.Dir).
		Return(nil, fmt.Errorf("%w after 2h0m0s", media.ErrEncodeTimeout)).Once()

	_, err := f.orch.Run(context.Background(), job(nil))
	require.ErrorIs(t, err, media.ErrEncodeTimeout)
	assert.Equal(t, "encode_timeout", ErrorKind(err))
}

func TestRun_PublishFailure(t *testing.T) {
	f := newFixture(t)
	f.validator.On("Validate", mock.Anything, src).Return(nil).Once()
	f.policy.On("Resolve", mock.Anything, media.Resolution720p, src.Path).Return(p720, nil).Once()
	f.transcoder.On("StagingDir", src).Return(out.Dir).Once()
	f.transcoder.On("Transcode", mock.Anything, src.Path, p720, out.Dir).Return(out, nil).Once()
	f.publisher.On("Publish", mock.Anything, out.Dir, src).
		Return(nil, fmt.Errorf("%w: permission denied", media.ErrPublishFailed)).Once()

	_, err := f.orch.Run(context.Background(), job(nil))

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, Publishing, failure.State)
	require.ErrorIs(t, err, media.ErrPublishFailed)
}

func TestRun_FinalizeFailureUnpublishes(t *testing.T) {
	f := newFixture(t)
	f.expectThroughPublish()
	f.publisher.On("Unpublish", pub).Return(nil).Once()

	dbErr := errors.New("commit: connection lost")
	res, err := f.orch.Run(context.Background(), job(func(context.Context, *publish.Published) error {
		return dbErr
	}))

	require.ErrorIs(t, err, dbErr)
	assert.Equal(t, Failed, res.State)
	assert.Nil(t, res.Published)
	f.publisher.AssertExpectations(t)
	f.catalog.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything)
}

func TestRun_CatalogFailureStillDone(t *testing.T) {
	f := newFixture(t)
	f.expectThroughPublish()
	f.catalog.On("Sync", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: dial tcp: connection refused", media.ErrCatalogSyncFailed)).Once()

	var persisted string
	res, err := f.orch.Run(context.Background(), job(func(_ context.Context, p *publish.Published) error {
		persisted = p.URL
		return nil
	}))

	require.NoError(t, err)
	assert.Equal(t, Done, res.State)
	assert.Equal(t, pub.URL, persisted)
	require.ErrorIs(t, res.CatalogErr, media.ErrCatalogSyncFailed)
}

func TestRun_UnknownTarget(t *testing.T) {
	f := newFixture(t)
	j := job(nil)
	j.Target = "4k"

	res, err := f.orch.Run(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, Failed, res.State)
	f.validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Logger: zerolog.Nop()})
	require.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Created, Validating, true},
		{Validating, Probing, true},
		{Probing, Encoding, true},
		{Encoding, Publishing, true},
		{Publishing, Syncing, true},
		{Syncing, Done, true},
		{Validating, Failed, true},
		{Encoding, Failed, true},
		{Publishing, Failed, true},
		{Syncing, Failed, false},
		{Created, Encoding, false},
		{Encoding, Syncing, false},
		{Done, Failed, false},
		{Failed, Validating, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
	assert.NoError(t, ValidateTransition(Encoding, Encoding))
	assert.ErrorIs(t, ValidateTransition(Done, Validating), ErrInvalidTransition)
	assert.True(t, Done.Terminal())
	assert.False(t, Syncing.Terminal())
}

type failingSink struct{}

func (failingSink) Insert(context.Context, catalog.Entry) error {
	return errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
}

const fakeEncoder = `for last; do :; done
dir=$(dirname "$last")
printf 'x' > "$dir/segment_000.ts"
printf '#EXTM3U\n#EXTINF:2.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n' > "$last"`

// Wires the real components with a fake encoder and an unreachable catalog.
func TestRun_RealComponents_ReprocessOverwrites(t *testing.T) {
	ffmpeg := fakebin.Write(t, "ffmpeg", fakeEncoder)

	uploads := t.TempDir()
	sourcePath := filepath.Join(uploads, "clip.mp4")
	require.NoError(t, os.WriteFile(sourcePath, []byte("not really a video"), 0o644))
	publicRoot := t.TempDir()

	prober := &stubProber{duration: 12.5}
	orch, err := New(Config{
		Validator:  validate.New(validate.Config{Prober: prober, Logger: zerolog.Nop()}),
		Policy:     policy.New(policy.Config{Prober: prober, Logger: zerolog.Nop()}),
		Transcoder: transcode.New(transcode.Config{Binary: ffmpeg, StagingRoot: t.TempDir(), Timeout: time.Minute, Logger: zerolog.Nop()}),
		Publisher:  publish.New(publish.Config{PublicRoot: publicRoot, BaseURL: "http://cdn.example.com/media", Logger: zerolog.Nop()}),
		Catalog:    catalog.NewMirror(catalog.MirrorConfig{Sink: failingSink{}, Logger: zerolog.Nop()}),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	var processed *string
	finalize := func(_ context.Context, p *publish.Published) error {
		u := p.URL
		processed = &u
		return nil
	}
	s := media.Source{Name: "video/26/clip.mp4", Path: sourcePath, Size: 18}

	first, err := orch.Run(context.Background(), Job{VideoID: "v1", Title: "Clip", Source: s, Target: media.Resolution360p, Finalize: finalize})
	require.NoError(t, err)
	assert.Equal(t, Done, first.State)
	require.Error(t, first.CatalogErr)
	require.NotNil(t, processed)

	processed = nil
	second, err := orch.Run(context.Background(), Job{VideoID: "v1", Title: "Clip", Source: s, Target: media.ResolutionOriginal, Finalize: finalize})
	require.NoError(t, err)
	assert.Equal(t, Done, second.State)
	require.NotNil(t, processed)
	assert.Equal(t, second.Published.URL, *processed)
	assert.Equal(t, 1920, second.Params.Width)
	assert.FileExists(t, filepath.Join(publicRoot, filepath.FromSlash(second.Published.RelativePath)))
}

type stubProber struct {
	duration float64
}

func (s *stubProber) Duration(context.Context, string) (float64, error) { return s.duration, nil }

func (s *stubProber) Dimensions(context.Context, string) (int, int, error) { return 1920, 1080, nil }

func TestRun_FinalizeFailureKeepsReferencedRendition(t *testing.T) {
	f := newFixture(t)
	f.expectThroughPublish()

	j := job(func(context.Context, *publish.Published) error { return errors.New("commit failed") })
	j.PreviousURL = pub.URL

	_, err := f.orch.Run(context.Background(), j)
	require.Error(t, err)
	f.publisher.AssertNotCalled(t, "Unpublish", mock.Anything)
}
