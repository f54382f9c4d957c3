package monitor

import (
	"bytes"
	"net/http"

	"gonum.org/v1/plot/vg"
	"tailscale.com/tsweb"

	"github.com/banshee-data/tape/internal/session"
)

// AttachAdminRoutes mounts the session debug pages on mux under /debug/.
// tsweb restricts them to localhost and tailnet clients.
func AttachAdminRoutes(mux *http.ServeMux, r *session.Runner) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Scale", func() any { return r.Estimator().Scale() })
	debug.KVFunc("Scale locked", func() any { return r.Estimator().Locked() })
	debug.KVFunc("History samples", func() any { return r.Store().HistoryLen() })
	debug.KVFunc("Session", func() any {
		if id := r.SessionID(); id != "" {
			return id
		}
		return "none"
	})

	debug.HandleFunc("heatmap", "live insole heatmap", func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer
		if err := RenderHeatmap(&buf, r.Snapshot()); err != nil {
			http.Error(w, "Failed to render heatmap", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})

	debug.HandleFunc("trace.png", "session intensity and scale trace", func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer
		err := WriteTracePNG(&buf, r.Store().History(), r.Estimator().Scale(), 10*vg.Inch, 4*vg.Inch)
		if err != nil {
			http.Error(w, "Failed to render trace", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(buf.Bytes())
	})
}
