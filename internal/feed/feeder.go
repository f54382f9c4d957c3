// Package feed posts mock insole frames to a running tape server over HTTP,
// standing in for the device transport.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/tape/internal/httputil"
	"github.com/banshee-data/tape/internal/mock"
	"github.com/banshee-data/tape/internal/monitoring"
	"github.com/banshee-data/tape/internal/realtime"
	"github.com/banshee-data/tape/internal/timeutil"
)

type Config struct {
	Client    httputil.HTTPClient
	BaseURL   string
	Generator *mock.Generator
	Clock     timeutil.Clock
	Interval  time.Duration
}

type Feeder struct {
	client   httputil.HTTPClient
	baseURL  string
	gen      *mock.Generator
	clock    timeutil.Clock
	interval time.Duration
}

func NewFeeder(cfg Config) *Feeder {
	f := &Feeder{
		client:   cfg.Client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		gen:      cfg.Generator,
		clock:    cfg.Clock,
		interval: cfg.Interval,
	}
	if f.client == nil {
		f.client = httputil.NewStandardClient(nil)
	}
	if f.gen == nil {
		f.gen = mock.NewGenerator(4, 4, mock.DefaultAmplitude)
	}
	if f.clock == nil {
		f.clock = timeutil.RealClock{}
	}
	if f.interval <= 0 {
		f.interval = 40 * time.Millisecond
	}
	return f
}

// StartSession begins a session on the server and pauses its built-in
// producer so that only fed frames reach the store. It returns the session
// ID.
func (f *Feeder) StartSession(ctx context.Context) (string, error) {
	resp, err := f.post(ctx, "/api/session/start", nil)
	if err != nil {
		return "", err
	}
	var snap struct {
		SessionID string `json:"session_id"`
	}
	err = json.NewDecoder(resp.Body).Decode(&snap)
	httputil.DrainAndClose(resp)
	if err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}

	resp, err = f.post(ctx, "/api/session/pause", nil)
	if err != nil {
		return "", err
	}
	httputil.DrainAndClose(resp)
	return snap.SessionID, nil
}

// Send posts one frame to /api/frames.
func (f *Feeder) Send(ctx context.Context, frame realtime.GridFrame) error {
	body, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	resp, err := f.post(ctx, "/api/frames", body)
	if err != nil {
		return err
	}
	httputil.DrainAndClose(resp)
	return nil
}

// Run posts a left and right frame every interval until ctx is done. Send
// failures are logged and counted, not fatal. It returns the number of
// frames accepted together with ctx.Err().
func (f *Feeder) Run(ctx context.Context) (int, error) {
	t0 := f.clock.Now()
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	var sent, failed int
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("feed: stopped after %d frames (%d failed)", sent, failed)
			return sent, ctx.Err()
		case now := <-ticker.C():
			left, right := f.gen.Pair(t0, now)
			for _, fr := range []realtime.GridFrame{left, right} {
				if err := f.Send(ctx, fr); err != nil {
					failed++
					monitoring.Logf("feed: send %s frame: %v", fr.Foot, err)
					continue
				}
				sent++
			}
		}
	}
}

// post sends body as JSON and returns the response when it is 2xx.
func (f *Feeder) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		defer httputil.DrainAndClose(resp)
		return nil, fmt.Errorf("post %s: %w", path, httputil.ReadJSONError(resp))
	}
	return resp, nil
}
