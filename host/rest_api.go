package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/wasm-framebuffer/engine"
	"github.com/alphabill-org/wasm-framebuffer/framebuffer"
	"github.com/alphabill-org/wasm-framebuffer/logger"
	"github.com/alphabill-org/wasm-framebuffer/memory"
)

const (
	headerContentType = "Content-Type"
	applicationJson   = "application/json"
	applicationCBOR   = "application/cbor"
	imagePNG          = "image/png"

	metricsScopeRESTAPI = "rest_api"

	MaxBodySize int64 = 1 << 16
)

var allowedCORSHeaders = []string{"Accept", "Accept-Language", "Content-Language", "Origin", headerContentType}

type (
	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		PrometheusRegisterer() prometheus.Registerer
		Logger() *slog.Logger
	}

	FrameResponse struct {
		DescriptorAddr uint32                 `json:"descriptorAddr"`
		Descriptor     framebuffer.Descriptor `json:"descriptor"`
	}

	SizeRequest struct {
		Width  uint32 `json:"width"`
		Height uint32 `json:"height"`
	}

	ErrorResponse struct {
		Message string `json:"message"`
	}

	restAPI struct {
		loop *Loop
		log  *slog.Logger
	}
)

/*
NewRESTServer returns HTTP server serving frames of the engine owned by "loop".
*/
func NewRESTServer(addr string, maxBodySize int64, loop *Loop, obs Observability) *http.Server {
	log := obs.Logger()
	api := &restAPI{loop: loop, log: log}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(api.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(api.methodNotAllowed)
	if pr := obs.PrometheusRegisterer(); pr != nil {
		if g, ok := pr.(prometheus.Gatherer); ok {
			r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{MaxRequestsInFlight: 1})).Methods(http.MethodGet)
		}
	}

	apiV1Router := r.PathPrefix("/api/v1").Subrouter()
	// method mismatch inside the subrouter is not reported to the parent router
	apiV1Router.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	apiV1Router.Use(handlers.CORS(handlers.AllowedHeaders(allowedCORSHeaders)), instrumentHTTP(obs.Meter(metricsScopeRESTAPI), log))
	apiV1Router.HandleFunc("/frame", api.getFrame).Methods(http.MethodGet, http.MethodOptions)
	apiV1Router.HandleFunc("/frame/snapshot", api.getSnapshot).Methods(http.MethodGet, http.MethodOptions)
	apiV1Router.HandleFunc("/frame/png", api.getPNG).Methods(http.MethodGet, http.MethodOptions)
	apiV1Router.HandleFunc("/frame/size", api.setSize).Methods(http.MethodPost, http.MethodOptions)
	apiV1Router.HandleFunc("/arena", api.getArena).Methods(http.MethodGet, http.MethodOptions)

	return &http.Server{
		Addr:              addr,
		ReadTimeout:       3 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
		Handler:           http.MaxBytesHandler(r, maxBodySize),
	}
}

func (api *restAPI) getFrame(w http.ResponseWriter, r *http.Request) {
	var rsp FrameResponse
	err := api.loop.Do(r.Context(), func(e *engine.Engine) error {
		if !e.Initialized() {
			return engine.ErrNotInitialized
		}
		rsp.DescriptorAddr = e.DescriptorAddr()
		rsp.Descriptor = e.Descriptor()
		return nil
	})
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, r, rsp)
}

func (api *restAPI) snapshot(r *http.Request) (*framebuffer.Snapshot, error) {
	var s *framebuffer.Snapshot
	err := api.loop.Do(r.Context(), func(e *engine.Engine) (err error) {
		s, err = e.Snapshot()
		return err
	})
	return s, err
}

func (api *restAPI) getSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := api.snapshot(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	w.Header().Set(headerContentType, applicationCBOR)
	if err := cbor.NewEncoder(w).Encode(s); err != nil {
		api.log.WarnContext(r.Context(), "failed to write CBOR snapshot", logger.Error(err))
	}
}

func (api *restAPI) getPNG(w http.ResponseWriter, r *http.Request) {
	s, err := api.snapshot(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	img, err := s.Image()
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	w.Header().Set(headerContentType, imagePNG)
	if err := png.Encode(w, img); err != nil {
		api.log.WarnContext(r.Context(), "failed to write PNG image", logger.Error(err))
	}
}

func (api *restAPI) setSize(w http.ResponseWriter, r *http.Request) {
	var req SizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.errorResponse(w, r, http.StatusBadRequest, fmt.Errorf("failed to parse request body: %w", err))
		return
	}
	var rsp FrameResponse
	err := api.loop.Do(r.Context(), func(e *engine.Engine) error {
		if err := e.Resize(r.Context(), req.Width, req.Height); err != nil {
			return err
		}
		rsp.DescriptorAddr = e.DescriptorAddr()
		rsp.Descriptor = e.Descriptor()
		return nil
	})
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, r, rsp)
}

func (api *restAPI) getArena(w http.ResponseWriter, r *http.Request) {
	var st engine.ArenaStatus
	err := api.loop.Do(r.Context(), func(e *engine.Engine) (err error) {
		st, err = e.ArenaStatus()
		return err
	})
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(w, r, st)
}

func (api *restAPI) notFound(w http.ResponseWriter, r *http.Request) {
	api.errorResponse(w, r, http.StatusNotFound, errors.New("404 not found"))
}

func (api *restAPI) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	api.errorResponse(w, r, http.StatusMethodNotAllowed, errors.New("405 method not allowed"))
}

func (api *restAPI) writeJSON(w http.ResponseWriter, r *http.Request, data any) {
	w.Header().Set(headerContentType, applicationJson)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.log.WarnContext(r.Context(), "failed to encode response data as json", logger.Error(err))
	}
}

/*
writeError maps engine errors to HTTP status codes.
*/
func (api *restAPI) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, framebuffer.ErrInvalidDimensions):
		api.errorResponse(w, r, http.StatusBadRequest, err)
	case errors.Is(err, framebuffer.ErrNotSized):
		api.errorResponse(w, r, http.StatusNotFound, err)
	case errors.Is(err, memory.ErrOutOfMemory):
		api.errorResponse(w, r, http.StatusInsufficientStorage, err)
	case errors.Is(err, engine.ErrNotInitialized), errors.Is(err, ErrLoopStopped):
		api.errorResponse(w, r, http.StatusServiceUnavailable, err)
	default:
		api.log.WarnContext(r.Context(), "request failed", logger.Error(err))
		api.errorResponse(w, r, http.StatusInternalServerError, err)
	}
}

func (api *restAPI) errorResponse(w http.ResponseWriter, r *http.Request, code int, err error) {
	w.Header().Set(headerContentType, applicationJson)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Message: err.Error()}); err != nil {
		api.log.WarnContext(r.Context(), "failed to encode error response as json", logger.Error(err))
	}
}
