package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lmhost/internal/languagemodel"
	"lmhost/pkg/types"
)

// Service is the session API served over HTTP. *languagemodel.Service
// satisfies it.
type Service interface {
	Availability(ctx context.Context, opts languagemodel.CreateOptions) (types.Availability, error)
	Params() types.SamplingParams
	Create(ctx context.Context, opts languagemodel.CreateOptions) (*languagemodel.Session, error)
}

// Host reports model lifecycle state. *manager.Manager satisfies it.
type Host interface {
	Models() []types.ModelStatus
	Status() types.StatusResponse
	Ready() bool
	Unload(id string) error
}

// Server binds a Service and Host to HTTP routes.
type Server struct {
	svc      Service
	host     Host
	sessions *sessionStore
}

// NewServer returns a Server with an empty session table.
func NewServer(svc Service, host Host) *Server {
	return &Server{svc: svc, host: host, sessions: newSessionStore()}
}

// Close destroys every live session.
func (s *Server) Close() { s.sessions.closeAll() }

// NewMux builds the router for svc and host.
func NewMux(svc Service, host Host) http.Handler {
	return NewServer(svc, host).Handler()
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{middleware.RequestIDHeader},
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.host.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", s.handleStatus)
	r.Get("/models", s.handleModels)
	r.Post("/models/{id}/unload", s.handleUnload)
	r.Get("/params", s.handleParams)
	r.Get("/availability", s.handleAvailability)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDestroySession)
			r.Post("/prompt", s.handlePrompt)
			r.Post("/append", s.handleAppend)
			r.Post("/clone", s.handleClone)
			r.Post("/measure", s.handleMeasure)
		})
	})

	if swaggerEnabled {
		MountSwagger(r)
	}
	return r
}

// @Summary Server status
// @Description Per-model availability, queue and in-flight counts, and live sessions.
// @Tags status
// @Produce json
// @Success 200 {object} types.StatusResponse
// @Router /status [get]
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.host.Status()
	st.Sessions = s.sessions.len()
	writeJSON(w, http.StatusOK, st)
}

// @Summary List models
// @Tags models
// @Produce json
// @Success 200 {object} types.ModelsResponse
// @Router /models [get]
func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: s.host.Models()})
}

// @Summary Unload a model
// @Description Drains in-flight work and releases the loaded runtime. Sessions stay valid; the next prompt reloads the model.
// @Tags models
// @Param id path string true "Model id"
// @Success 204
// @Failure 404 {object} types.ErrorResponse
// @Router /models/{id}/unload [post]
func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	rl := startRequestLog(r, "unload", map[string]any{"model": chi.URLParam(r, "id")})
	if err := s.host.Unload(chi.URLParam(r, "id")); err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	rl.end(http.StatusNoContent, nil)
}

// @Summary Sampling bounds
// @Tags models
// @Produce json
// @Success 200 {object} types.SamplingParams
// @Router /params [get]
func (s *Server) handleParams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Params())
}

// @Summary Model availability
// @Description Reports whether a session with the given options could be created.
// @Tags models
// @Produce json
// @Param model query string false "Model id"
// @Param expected_inputs query string false "Comma-separated content types"
// @Param temperature query number false "Sampling temperature"
// @Param top_k query integer false "Top-K"
// @Success 200 {object} types.AvailabilityResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /availability [get]
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := languagemodel.CreateOptions{Model: q.Get("model")}
	for _, t := range strings.Split(q.Get("expected_inputs"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			opts.ExpectedInputs = append(opts.ExpectedInputs, types.ContentType(t))
		}
	}
	if v := q.Get("temperature"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid temperature")
			return
		}
		opts.Temperature = &f
	}
	if v := q.Get("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid top_k")
			return
		}
		opts.TopK = &k
	}
	av, err := s.svc.Availability(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.AvailabilityResponse{Model: opts.Model, Availability: av})
}

// @Summary List sessions
// @Tags sessions
// @Produce json
// @Success 200 {object} types.SessionsResponse
// @Router /sessions [get]
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	out := types.SessionsResponse{Sessions: []types.SessionResponse{}}
	for _, sess := range s.sessions.list() {
		out.Sessions = append(out.Sessions, sessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

// @Summary Create a session
// @Description With monitor=true the response is NDJSON: progress lines while the model downloads, then a session (or error) line.
// @Tags sessions
// @Accept json
// @Produce json
// @Produce application/x-ndjson
// @Param monitor query bool false "Stream download progress"
// @Param request body types.CreateSessionRequest false "Session options"
// @Success 201 {object} types.SessionResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 422 {object} types.ErrorResponse
// @Failure 503 {object} types.ErrorResponse
// @Router /sessions [post]
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSessionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	rl := startRequestLog(r, "create", map[string]any{"model": req.Model})

	opts := languagemodel.CreateOptions{
		Model:          req.Model,
		Temperature:    req.Temperature,
		TopK:           req.TopK,
		InitialPrompts: req.InitialPrompts,
		ExpectedInputs: req.ExpectedInputs,
	}

	if !queryBool(r, "monitor") {
		sess, err := s.svc.Create(ctx, opts)
		if err != nil {
			rl.end(writeError(w, err), err)
			return
		}
		s.sessions.put(sess)
		writeJSON(w, http.StatusCreated, sessionResponse(sess))
		rl.end(http.StatusCreated, nil)
		return
	}

	nd := newNDJSONWriter(w, r, "create")
	nd.start(http.StatusOK)
	opts.Monitor = func(p languagemodel.DownloadProgress) {
		nd.write(types.ProgressEvent{Type: "progress", Loaded: p.Loaded})
	}
	sess, err := s.svc.Create(ctx, opts)
	if err != nil {
		body := errorBody(err)
		nd.write(types.ProgressEvent{Type: "error", Error: &body})
		rl.end(body.Code, err)
		return
	}
	s.sessions.put(sess)
	resp := sessionResponse(sess)
	nd.write(types.ProgressEvent{Type: "session", Session: &resp})
	rl.end(http.StatusOK, nil)
}

// @Summary Get a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} types.SessionResponse
// @Failure 404 {object} types.ErrorResponse
// @Router /sessions/{id} [get]
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// @Summary Destroy a session
// @Description Idempotent; pending operations on the session fail with kind "disposed".
// @Tags sessions
// @Param id path string true "Session id"
// @Success 204
// @Router /sessions/{id} [delete]
func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	s.sessions.remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Prompt a session
// @Description With stream=true the response is NDJSON: {"token":..} lines, then {"done":true,...}.
// @Tags sessions
// @Accept json
// @Produce json
// @Produce application/x-ndjson
// @Param id path string true "Session id"
// @Param request body types.PromptRequest true "Prompt"
// @Success 200 {object} types.PromptResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 404 {object} types.ErrorResponse
// @Failure 410 {object} types.ErrorResponse
// @Failure 413 {object} types.ErrorResponse
// @Failure 422 {object} types.ErrorResponse
// @Failure 429 {object} types.ErrorResponse
// @Failure 503 {object} types.ErrorResponse
// @Router /sessions/{id}/prompt [post]
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req types.PromptRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if promptTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, promptTimeout)
		defer tcancel()
	}
	rl := startRequestLog(r, "prompt", map[string]any{"session": sess.ID(), "stream": req.Stream})
	opts := promptOptions(req)

	if !req.Stream {
		out, err := sess.Prompt(ctx, req.Input, opts)
		if err != nil {
			rl.end(writeError(w, err), err)
			return
		}
		writeJSON(w, http.StatusOK, types.PromptResponse{
			Completion: out,
			InputUsage: sess.InputUsage(),
			InputQuota: sess.InputQuota(),
		})
		rl.end(http.StatusOK, nil)
		return
	}

	stream, err := sess.PromptStreaming(ctx, req.Input, opts)
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	defer stream.Close()

	nd := newNDJSONWriter(w, r, "prompt")
	nd.start(http.StatusOK)
	var completion strings.Builder
	for chunk, err := range stream.All() {
		if err != nil {
			body := errorBody(err)
			nd.write(types.StreamLine{Error: &body})
			rl.end(body.Code, err)
			return
		}
		completion.WriteString(chunk)
		if !nd.write(types.StreamLine{Token: chunk}) {
			rl.end(StatusClientClosedRequest, ctx.Err())
			return
		}
	}
	nd.write(types.StreamLine{
		Done:       true,
		Completion: completion.String(),
		InputUsage: sess.InputUsage(),
		InputQuota: sess.InputQuota(),
	})
	rl.end(http.StatusOK, nil)
}

// @Summary Append to a session
// @Description Adds input to the history without generating a reply.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param request body types.AppendRequest true "Input"
// @Success 200 {object} types.SessionResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 413 {object} types.ErrorResponse
// @Router /sessions/{id}/append [post]
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req types.AppendRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	rl := startRequestLog(r, "append", map[string]any{"session": sess.ID()})
	if err := sess.Append(ctx, req.Input); err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
	rl.end(http.StatusOK, nil)
}

// @Summary Clone a session
// @Description The clone starts from the original's initial prompts with the same options.
// @Tags sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 201 {object} types.SessionResponse
// @Failure 404 {object} types.ErrorResponse
// @Failure 410 {object} types.ErrorResponse
// @Router /sessions/{id}/clone [post]
func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	rl := startRequestLog(r, "clone", map[string]any{"session": sess.ID()})
	c, err := sess.Clone(ctx)
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	s.sessions.put(c)
	writeJSON(w, http.StatusCreated, sessionResponse(c))
	rl.end(http.StatusCreated, nil)
}

// @Summary Measure input usage
// @Description Counts the tokens input would consume, without changing the session.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param request body types.PromptRequest true "Input"
// @Success 200 {object} types.MeasureResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /sessions/{id}/measure [post]
func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req types.PromptRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	rl := startRequestLog(r, "measure", map[string]any{"session": sess.ID()})
	n, err := sess.MeasureInputUsage(ctx, req.Input, promptOptions(req))
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	writeJSON(w, http.StatusOK, types.MeasureResponse{Tokens: n})
	rl.end(http.StatusOK, nil)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*languagemodel.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.get(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "session not found: "+id)
		return nil, false
	}
	return sess, true
}

func promptOptions(req types.PromptRequest) languagemodel.PromptOptions {
	return languagemodel.PromptOptions{
		ResponseConstraint:          req.ResponseConstraint,
		OmitResponseConstraintInput: req.OmitResponseConstraintInput,
	}
}

// decodeJSON reads a JSON body into dst, writing the error response itself.
// allowEmpty accepts a missing body as the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return false
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && allowEmpty:
		return true
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// ndjsonWriter writes flushed NDJSON lines, mirroring them to the debug log
// when the request asks for it.
type ndjsonWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
	failed  bool
}

func newNDJSONWriter(w http.ResponseWriter, r *http.Request, op string) *ndjsonWriter {
	var out io.Writer = w
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{op: op})
	}
	f, _ := w.(http.Flusher)
	return &ndjsonWriter{w: w, flusher: f, enc: json.NewEncoder(out)}
}

func (nd *ndjsonWriter) start(status int) {
	nd.w.Header().Set("Content-Type", "application/x-ndjson")
	nd.w.Header().Set("Cache-Control", "no-cache")
	nd.w.WriteHeader(status)
	if nd.flusher != nil {
		nd.flusher.Flush()
	}
}

// write encodes v as one line. It reports false once the client is gone.
func (nd *ndjsonWriter) write(v any) bool {
	if nd.failed {
		return false
	}
	if err := nd.enc.Encode(v); err != nil {
		nd.failed = true
		return false
	}
	if nd.flusher != nil {
		nd.flusher.Flush()
	}
	return true
}
