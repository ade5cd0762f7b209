package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/photoblog-ai/internal/config"
	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
	"github.com/kirillkom/photoblog-ai/internal/observability/metrics"
)

const serviceName = "photoblog-ai-api"

// UploadPublisher hands upload events to the worker.
type UploadPublisher interface {
	PublishPhotoUploaded(ctx context.Context, photoID string) error
}

type Router struct {
	cfg      config.Config
	syncer   ports.PhotoSyncer
	streamer ports.QueryStreamer
	regens   ports.RegenerationService
	uploads  UploadPublisher
	metrics  *metrics.HTTPServerMetrics
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func NewRouter(
	cfg config.Config,
	syncer ports.PhotoSyncer,
	streamer ports.QueryStreamer,
	regens ports.RegenerationService,
	uploads UploadPublisher,
	opts ...Option,
) *Router {
	rt := &Router{
		cfg:      cfg,
		syncer:   syncer,
		streamer: streamer,
		regens:   regens,
		uploads:  uploads,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/photos/{photo_id}/ai", rt.generatePhotoFields)
	api.HandleFunc("GET /v1/photos/{photo_id}/ai/stream", rt.streamPhotoQuery)
	api.HandleFunc("POST /v1/photos/{photo_id}/uploaded", rt.publishUploaded)
	api.HandleFunc("POST /v1/ai/regenerations", rt.startRegeneration)
	api.HandleFunc("GET /v1/ai/regenerations/{run_id}", rt.getRegeneration)
	api.HandleFunc("GET /v1/ai/connection", rt.testConnection)

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.APIBackpressureMax, rt.cfg.APIBackpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type generateRequest struct {
	Fields string `json:"fields"`
}

func (rt *Router) generatePhotoFields(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := rt.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fields := domain.ParseFieldSetText(req.Fields)
	if fields.Empty() {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "generate photo fields", errors.New("no known fields requested")))
		return
	}

	result, err := rt.syncer.SyncPhoto(r.Context(), r.PathValue("photo_id"), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) streamPhotoQuery(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseQueryKind(r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if rt.cfg.APIStreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.cfg.APIStreamTimeout)
		defer cancel()
	}

	events, err := rt.streamer.StreamQuery(ctx, r.PathValue("photo_id"), kind)
	if err != nil {
		rt.recordStream(kind, err)
		writeError(w, r, err)
		return
	}

	err = writeEventStream(ctx, w, events)
	rt.recordStream(kind, err)
	if err != nil {
		slog.Warn("query_stream_ended_with_error",
			"request_id", requestIDFromContext(r.Context()),
			"photo_id", r.PathValue("photo_id"),
			"query_kind", string(kind),
			"error", err,
		)
	}
}

func (rt *Router) publishUploaded(w http.ResponseWriter, r *http.Request) {
	photoID := strings.TrimSpace(r.PathValue("photo_id"))
	if photoID == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "publish upload", errors.New("photo id is required")))
		return
	}
	if err := rt.uploads.PublishPhotoUploaded(r.Context(), photoID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"photo_id": photoID, "status": "queued"})
}

type regenerationRequest struct {
	TagsOnly bool   `json:"tags_only"`
	Fields   string `json:"fields"`
}

func (rt *Router) startRegeneration(w http.ResponseWriter, r *http.Request) {
	var req regenerationRequest
	if err := rt.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	fields := domain.ParseFieldSetText(req.Fields)
	if req.TagsOnly {
		fields = domain.NewFieldSet(domain.FieldTags)
	}

	run, err := rt.regens.Start(fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getRegeneration(w http.ResponseWriter, r *http.Request) {
	run, err := rt.regens.Get(r.Context(), r.PathValue("run_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) testConnection(w http.ResponseWriter, r *http.Request) {
	text, configured, err := rt.streamer.TestConnection(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configured": configured, "text": text})
}

// decodeBody reads an optional JSON body; an empty body leaves out untouched.
func (rt *Router) decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	body := r.Body
	if rt.cfg.APIRequestBodyMaxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, rt.cfg.APIRequestBodyMaxBytes)
	}
	if err := json.NewDecoder(body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func (rt *Router) recordStream(kind domain.QueryKind, err error) {
	if rt.metrics != nil {
		rt.metrics.RecordQueryStream(string(kind), err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
