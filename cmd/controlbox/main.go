// Command controlbox boots the intersection controller: it reads its
// configuration from the environment (teacher's main.go convention), wires
// the cloud collaborator, emergency bus subscriber and dashboard, and runs
// the control box until a shutdown signal arrives.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andrem20/allways-safe/controlbox"
	"github.com/andrem20/allways-safe/controlbox/cloud"
	"github.com/andrem20/allways-safe/controlbox/dashboard"
	"github.com/andrem20/allways-safe/controlbox/emergencybus"
	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/semaphore"
	"github.com/andrem20/allways-safe/controlbox/strategy"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	controlBoxID := getenv("CONTROL_BOX_ID", "cb-1")
	tmcID := getenv("TMC_ID", "tmc-1")
	cloudBaseURL := getenv("CLOUD_BASE_URL", "http://localhost:9000")
	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	dashboardAddr := getenv("DASHBOARD_ADDR", ":8090")
	metricsAddr := getenv("METRICS_ADDR", ":9100")
	psemPath := os.Getenv("PSEM_CONFIG_PATH")
	tsemPath := os.Getenv("TSEM_CONFIG_PATH")

	log.Printf("[main] starting control box %s (tmc=%s)", controlBoxID, tmcID)

	queue := mediator.NewQueue()
	baseClient := cloud.New(cloudBaseURL, controlBoxID, tmcID, queue)

	var cloudClient strategy.CloudClient = baseClient
	if psemPath != "" && tsemPath != "" {
		log.Printf("[main] local config fixtures set, bypassing cloud for SET_UP: psem=%s tsem=%s", psemPath, tsemPath)
		cloudClient = cloud.NewLocalConfigClient(baseClient, psemPath, tsemPath)
	}

	writer := semaphore.NewSimulatedLines()
	sys := controlbox.New(writer, queue, cloudClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		log.Printf("[main] metrics listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("[main] metrics server exited: %v", err)
		}
	}()

	hub := dashboard.NewHub(sys)
	go hub.Run(ctx)
	dashSrv := dashboard.NewServer(dashboardAddr, hub)
	go func() {
		log.Printf("[main] dashboard listening on %s", dashboardAddr)
		if err := dashSrv.ListenAndServe(); err != nil {
			log.Printf("[main] dashboard server exited: %v", err)
		}
	}()

	sub, err := emergencybus.NewRedisSubscriber(ctx, redisAddr, queue)
	if err != nil {
		log.Printf("[main] emergency bus unavailable, continuing without it: %v", err)
	} else {
		go func() {
			if err := sub.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[main] emergency bus subscriber exited: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		sys.Shutdown()
		cancel()
	}()

	sys.Run(ctx)

	// Give the scheduler's safe-stop a moment to finish driving every line
	// RED before the process exits (§5 "Cancellation").
	time.Sleep(200 * time.Millisecond)
}
