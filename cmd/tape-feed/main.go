// Command tape-feed posts mock insole frames to a tape server, exercising
// the frame ingest path the way a device bridge would.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/tape/internal/config"
	"github.com/banshee-data/tape/internal/feed"
	"github.com/banshee-data/tape/internal/httputil"
	"github.com/banshee-data/tape/internal/mock"
)

var (
	server     = flag.String("server", "http://localhost:8080", "Base URL of the tape server")
	configPath = flag.String("config", "", "Path to a tuning JSON file for grid size, amplitude and frame interval")
	start      = flag.Bool("start", true, "Start a new session before feeding")
	duration   = flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
)

func main() {
	flag.Parse()

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("load tuning config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	f := feed.NewFeeder(feed.Config{
		Client:    httputil.NewStandardClient(&http.Client{Timeout: 2 * time.Second}),
		BaseURL:   *server,
		Generator: mock.NewGenerator(cfg.GetGridRows(), cfg.GetGridCols(), cfg.GetMockAmplitude()),
		Interval:  cfg.GetFrameInterval(),
	})

	if *start {
		id, err := f.StartSession(ctx)
		if err != nil {
			log.Fatalf("start session: %v", err)
		}
		log.Printf("started session %s on %s", id, *server)
	}

	n, err := f.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Fatalf("feed: %v", err)
	}
	log.Printf("sent %d frames", n)
}
