package main

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/service"
	"github.com/rushteam/feedrank/signal"
)

// server 把 service.Recommender 与存储适配层暴露为 HTTP 接口。
type server struct {
	recommender  *service.Recommender
	loader       *signal.Loader
	recorder     *signal.Recorder
	blocklist    *filter.BlacklistFilter // 为 nil 时不挂载 /v1/blocklist
	gatherer     prometheus.Gatherer
	logger       zerolog.Logger
	maxBodyBytes int64
	rateLimit    int
	rateWindow   time.Duration
}

type interactionRequest struct {
	UserID string `json:"userId"`
	core.Interaction
}

type idList struct {
	IDs []string `json:"ids"`
}

type batchRequest struct {
	Requests []service.Request `json:"requests"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.Limit(s.rateLimit, s.rateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many requests"})
				}),
			))
		}
		r.Post("/recommend", s.handleRecommend)
		r.Post("/recommend/batch", s.handleRecommendBatch)
		r.Post("/recommend/stored", s.handleRecommendStored)
		r.Post("/interactions", s.handleInteraction)
		r.Post("/contents", s.handlePublish)
		if s.blocklist != nil {
			r.Route("/blocklist", func(r chi.Router) {
				contents := s.handleList(func(*http.Request) string { return s.blocklist.ContentKey })
				creators := s.handleList(func(*http.Request) string { return s.blocklist.CreatorKey })
				user := s.handleList(func(req *http.Request) string { return s.blocklist.UserKey(chi.URLParam(req, "userID")) })
				r.Get("/contents", contents)
				r.Put("/contents", contents)
				r.Get("/creators", creators)
				r.Put("/creators", creators)
				r.Get("/users/{userID}", user)
				r.Put("/users/{userID}", user)
			})
		}
	})
	return r
}

func (s *server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if !s.decode(w, r, &req) {
		return
	}
	results, err := s.recommender.Recommend(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *server) handleRecommendBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	results, err := s.recommender.RecommendBatch(r.Context(), req.Requests)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *server) handleRecommendStored(w http.ResponseWriter, r *http.Request) {
	var req service.StoredRequest
	if !s.decode(w, r, &req) {
		return
	}
	results, err := s.recommender.RecommendStored(r.Context(), s.loader, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.recorder.Record(r.Context(), req.UserID, req.Interaction)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var item core.ContentItem
	if !s.decode(w, r, &item) {
		return
	}
	if item.ID == "" {
		s.writeError(w, r, core.InvalidArgument(core.ModuleService, "service: content id is required"))
		return
	}
	if err := s.recorder.Publish(r.Context(), item); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleList 读取（GET）或整体替换（PUT）一份屏蔽名单，响应为替换后的名单。
func (s *server) handleList(key func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k := key(r)
		if k == "" {
			s.writeError(w, r, core.InvalidArgument(core.ModuleService, "service: blocklist key is empty"))
			return
		}
		if r.Method == http.MethodPut {
			var body idList
			if !s.decode(w, r, &body) {
				return
			}
			if err := s.blocklist.Store.PutList(r.Context(), k, body.IDs); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		ids, err := s.blocklist.Store.GetList(r.Context(), k)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, idList{IDs: ids})
	}
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Code: "BODY_TOO_LARGE", Message: err.Error()})
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: core.ErrorCodeInvalidArgument, Message: err.Error()})
		return false
	}
	return true
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, core.ErrorCodeInternalError
	switch {
	case core.IsInvalidArgument(err):
		status, code = http.StatusBadRequest, core.ErrorCodeInvalidArgument
	case core.IsNotFound(err):
		status, code = http.StatusNotFound, core.ErrorCodeNotFound
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		status, code = 499, "CANCELED"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
