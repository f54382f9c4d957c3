package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/tape/internal/api"
	"github.com/banshee-data/tape/internal/config"
	"github.com/banshee-data/tape/internal/device"
	"github.com/banshee-data/tape/internal/mock"
	"github.com/banshee-data/tape/internal/monitor"
	"github.com/banshee-data/tape/internal/monitoring"
	"github.com/banshee-data/tape/internal/realtime"
	"github.com/banshee-data/tape/internal/scale"
	"github.com/banshee-data/tape/internal/session"
	"github.com/banshee-data/tape/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to a tuning JSON file (defaults apply when empty)")
	autostart   = flag.Bool("autostart", false, "Start a session with the mock producer on boot")
	demoDevice  = flag.Bool("demo-device", false, "Report a connected demo insole on /api/device")
	verbose     = flag.Bool("verbose", false, "Log per-frame and per-estimate debug output")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads path, or returns an empty config whose getters supply
// the defaults. A missing file at the default path is not an error so the
// binary runs outside the repository.
func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	if path == config.DefaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			log.Printf("%s not found, using built-in tuning defaults", path)
			return config.EmptyTuningConfig(), nil
		}
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load tuning config: %w", err)
	}
	return cfg, nil
}

func newRunner(cfg *config.TuningConfig) *session.Runner {
	return session.NewRunner(session.Config{
		Store:            realtime.NewStore(),
		Estimator:        scale.NewEstimator(cfg.ScaleParams()),
		Generator:        mock.NewGenerator(cfg.GetGridRows(), cfg.GetGridCols(), cfg.GetMockAmplitude()),
		FrameInterval:    cfg.GetFrameInterval(),
		EstimateInterval: cfg.GetEstimateInterval(),
	})
}

// newHandler mounts the API and the localhost-only debug pages.
func newHandler(r *session.Runner, dev *device.Tracker) http.Handler {
	mux := http.NewServeMux()
	monitor.AttachAdminRoutes(mux, r)
	mux.Handle("/api/", api.NewServer(r, dev).ServeMux())
	return api.LoggingMiddleware(mux)
}

// shutdownServer closes the live frame streams, then shuts server down,
// forcing it closed if the graceful shutdown does not finish in time.
func shutdownServer(server *http.Server, r *session.Runner, timeout time.Duration) error {
	// SSE handlers return once their subscriber channels close
	r.Store().Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if cerr := server.Close(); cerr != nil {
			log.Printf("HTTP server force close error: %v", cerr)
		}
	}
	return err
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("tape %s\n", version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetVerbose(*verbose)
	log.Printf("tape %s", version.String())

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	runner := newRunner(cfg)

	dev := device.NewTracker()
	if *demoDevice {
		dev = device.NewDemoTracker()
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// scale estimator; also tears down the mock producer on exit
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("session runner error: %v", err)
		}
		log.Print("session runner terminated")
	}()

	if *autostart {
		id := runner.Start()
		log.Printf("autostarted session %s", id)
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    *listen,
			Handler: newHandler(runner, dev),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		shutdownServer(server, runner, 5*time.Second)
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Print("graceful shutdown complete")
}
