package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/banshee-data/tape/internal/device"
	"github.com/banshee-data/tape/internal/httputil"
	"github.com/banshee-data/tape/internal/monitoring"
	"github.com/banshee-data/tape/internal/realtime"
	"github.com/banshee-data/tape/internal/scale"
)

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.runner.Snapshot())
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.runner.Summary())
}

// sessionAction wraps a control that takes no input. The response is the
// snapshot taken after the control ran.
func (s *Server) sessionAction(action func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		action()
		httputil.WriteJSONOK(w, s.runner.Snapshot())
	}
}

type frameResponse struct {
	Foot       realtime.Foot `json:"foot"`
	Timestamp  int64         `json:"ts"`
	HistoryLen int           `json:"history_len"`
}

func (s *Server) ingestFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var f realtime.GridFrame
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid frame: %v", err))
		return
	}
	if err := f.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	s.runner.PushFrame(f)
	httputil.WriteJSON(w, http.StatusAccepted, frameResponse{
		Foot:       f.Foot,
		Timestamp:  f.Timestamp,
		HistoryLen: s.runner.Store().HistoryLen(),
	})
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.device.Status())
	case http.MethodPost:
		var u device.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBody)).Decode(&u); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid device update: %v", err))
			return
		}
		st, err := s.device.Apply(u)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, st)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// streamFrames sends every stored frame to the client as a server-sent
// event, normalized by the scale current at send time.
func (s *Server) streamFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	store := s.runner.Store()
	id, c := store.Subscribe()
	defer store.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case f, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(scale.NormalizeFrame(f, s.runner.Estimator().Scale()))
			if err != nil {
				monitoring.Logf("api: encode frame: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Foot, payload); err != nil {
				monitoring.Debugf("api: stream %s closed: %v", id, err)
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
