package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/pipeline"
	"github.com/romariotrain/hls-vod/internal/video/models"
	"github.com/romariotrain/hls-vod/internal/video/service"
)

const (
	maxFieldBytes   = 4 << 10
	multipartSlack  = 1 << 20
	defaultPageSize = 50
	maxPageSize     = 500
)

type VideoService interface {
	CreateVideo(ctx context.Context, in service.CreateVideoInput) (*models.Video, error)
	Reprocess(ctx context.Context, id uuid.UUID, target *media.Resolution) (*models.Video, error)
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListVideos(ctx context.Context, f models.ListFilter) ([]*models.Video, error)
}

type Handler struct {
	svc    VideoService
	intake *Intake
	logger zerolog.Logger
}

func New(svc VideoService, intake *Intake, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		intake: intake,
		logger: logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateVideo accepts a multipart upload with fields video, caption and
// target_resolution, and responds once the video is published or rejected.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	if h.intake.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.intake.maxBytes+multipartSlack)
	}
	defer r.Body.Close()

	mr, err := r.MultipartReader()
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	var (
		in       service.CreateVideoInput
		stored   bool
		parseErr error
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErr = err
			break
		}
		parseErr = h.readPart(part, &in, &stored)
		part.Close()
		if parseErr != nil {
			break
		}
	}

	if parseErr != nil {
		if stored {
			h.removeSource(in.Source)
		}
		h.writeError(w, parseErr)
		return
	}
	if !stored {
		writeErrorJSON(w, http.StatusBadRequest, "missing video file")
		return
	}

	v, err := h.svc.CreateVideo(r.Context(), in)
	if err != nil {
		h.removeSource(in.Source)
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVideoResponse(v))
}

func (h *Handler) readPart(part *multipart.Part, in *service.CreateVideoInput, stored *bool) error {
	switch part.FormName() {
	case "video":
		if *stored {
			return fmt.Errorf("%w: only one video file per request", models.ErrInvalidArgument)
		}
		if part.FileName() == "" {
			return fmt.Errorf("%w: video field must be a file", models.ErrInvalidArgument)
		}
		src, err := h.intake.Store(part.FileName(), part)
		if err != nil {
			return err
		}
		in.Source = src
		*stored = true
	case "caption":
		val, err := readField(part)
		if err != nil {
			return err
		}
		in.Caption = val
	case "target_resolution":
		val, err := readField(part)
		if err != nil {
			return err
		}
		if strings.TrimSpace(val) == "" {
			return nil
		}
		res, err := media.ParseResolution(val)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
		}
		in.Target = res
	}
	return nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxFieldBytes {
		return "", fmt.Errorf("%w: form field too long", models.ErrInvalidArgument)
	}
	return string(data), nil
}

func (h *Handler) removeSource(src media.Source) {
	if err := h.intake.Remove(src); err != nil {
		h.logger.Error().Err(err).Str("source", src.Name).Msg("failed to remove rejected upload")
	}
}

func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.GetVideo(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(v))
}

func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.ListFilter{Limit: defaultPageSize}

	if raw := q.Get("target_resolution"); raw != "" {
		res, err := media.ParseResolution(raw)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		f.TargetResolution = res
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorJSON(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = n
	}
	if f.Limit == 0 || f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	videos, err := h.svc.ListVideos(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := ListResponse{Videos: make([]VideoResponse, 0, len(videos))}
	for _, v := range videos {
		resp.Videos = append(resp.Videos, toVideoResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reprocess re-runs the pipeline for an existing video, optionally with a new
// target resolution. The body may be empty.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()

	var req ReprocessRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxFieldBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.TargetResolution != nil {
		res, err := media.ParseResolution(string(*req.TargetResolution))
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		req.TargetResolution = &res
	}

	v, err := h.svc.Reprocess(r.Context(), id, req.TargetResolution)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(v))
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) && !errors.Is(err, media.ErrFileTooLarge) {
		err = fmt.Errorf("%w: request body exceeds %d bytes", media.ErrFileTooLarge, maxErr.Limit)
	}
	kind := pipeline.ErrorKind(err)
	switch {
	case media.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Kind: kind})
	case errors.Is(err, models.ErrInvalidArgument):
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeErrorJSON(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrConflict):
		writeErrorJSON(w, http.StatusConflict, "conflict")
	case service.IsPipelineFailure(err) && kind != "internal":
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: kind})
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
