package functionRuntimeInterface

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	ChallengeHeader   = "x-internal-challenge"
	ExecutionIDHeader = "x-open-runtimes-execution-id"

	HealthPath = "/__runtime/health"
	StatsPath  = "/__runtime/stats"
)

// ExecutionRequest is the body the executor POSTs to the runtime.
type ExecutionRequest struct {
	Payload   string            `json:"payload"`
	Variables map[string]string `json:"variables"`
	Headers   map[string]string `json:"headers"`
}

// ExecutionResponse is returned for every execution, failed or not.
type ExecutionResponse struct {
	Response json.RawMessage `json:"response"`
	Stdout   string          `json:"stdout"`
	Stderr   string          `json:"stderr"`
}

// Router serves the executor protocol.
func (r *Runtime) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(
		chimiddleware.RequestSize(r.settings.MaxBodyBytes),
		r.accessLogger,
		chimiddleware.Recoverer,
	)

	router.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "pass"})
	})

	router.Group(func(protected chi.Router) {
		protected.Use(r.requireSecret)
		protected.Post("/", r.handleExecute)
		protected.Get(StatsPath, func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, r.Stats(req.Context()))
		})
	})

	return router
}

func (r *Runtime) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.authorized(req.Header.Get(ChallengeHeader)) {
			r.logger.Warn("rejected request", "path", req.URL.Path, "error", &UnauthorizedError{})
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Runtime) authorized(challenge string) bool {
	if r.settings.Secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(challenge), []byte(r.settings.Secret)) == 1
}

func (r *Runtime) handleExecute(w http.ResponseWriter, req *http.Request) {
	var body ExecutionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"message": "Request body too large"})
			return
		}
		r.logger.Warn("malformed execution request", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed execution request: " + err.Error()})
		return
	}

	exec, err := r.Execute(req.Context(), &Request{
		Payload:   body.Payload,
		Variables: body.Variables,
		Headers:   body.Headers,
	})
	w.Header().Set(ExecutionIDHeader, exec.ID)

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ExecutionResponse{
			Response: json.RawMessage(`""`),
			Stdout:   exec.Stdout,
			Stderr:   exec.Stderr,
		})
		return
	}

	writeJSON(w, http.StatusOK, ExecutionResponse{
		Response: embedBody(exec.Response),
		Stdout:   exec.Stdout,
		Stderr:   exec.Stderr,
	})
}

// embedBody keeps JSON bodies as JSON and turns everything else into a JSON string.
func embedBody(res *Response) json.RawMessage {
	if res.IsJSON() {
		return json.RawMessage(res.Body)
	}
	b, err := json.Marshal(string(res.Body))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func (r *Runtime) accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		r.logger.LogAttrs(req.Context(), slog.LevelDebug, "request completed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
