package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/tape/internal/device"
	"github.com/banshee-data/tape/internal/httputil"
	"github.com/banshee-data/tape/internal/session"
	"github.com/banshee-data/tape/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxFrameBody bounds POST bodies; a 64x64 grid of floats fits comfortably.
const maxFrameBody = 1 << 20

type Server struct {
	runner *session.Runner
	device *device.Tracker
}

func NewServer(runner *session.Runner, dev *device.Tracker) *Server {
	if dev == nil {
		dev = device.NewTracker()
	}
	return &Server{
		runner: runner,
		device: dev,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", s.showSession)
	mux.HandleFunc("/api/session/summary", s.showSummary)
	mux.HandleFunc("/api/session/stream", s.streamFrames)
	mux.HandleFunc("/api/session/start", s.sessionAction(func() { s.runner.Start() }))
	mux.HandleFunc("/api/session/pause", s.sessionAction(s.runner.Pause))
	mux.HandleFunc("/api/session/lock", s.sessionAction(s.runner.Lock))
	mux.HandleFunc("/api/session/unlock", s.sessionAction(s.runner.Unlock))
	mux.HandleFunc("/api/session/toggle-lock", s.sessionAction(func() { s.runner.ToggleLock() }))
	mux.HandleFunc("/api/session/reset", s.sessionAction(s.runner.Reset))
	mux.HandleFunc("/api/frames", s.ingestFrame)
	mux.HandleFunc("/api/device", s.handleDevice)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

type versionResponse struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, versionResponse{
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		BuildTime: version.BuildTime,
	})
}
