package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/cardscan/internal/capture"
	"github.com/mmynk/cardscan/internal/config"
	"github.com/mmynk/cardscan/internal/metrics"
	"github.com/mmynk/cardscan/internal/middleware"
	"github.com/mmynk/cardscan/internal/scanner"
	"github.com/mmynk/cardscan/pkg/api/cardscanv1/cardscanv1connect"
	"github.com/mmynk/cardscan/pkg/logging"
)

func main() {
	allowDuplicates := flag.Bool("allow-duplicates", false, "save contacts that match an existing record")
	once := flag.Bool("once", false, "exit after the first scan")
	metricsAddr := flag.String("metrics-addr", "", "serve capture metrics on this address")
	flag.Parse()

	if err := config.LoadEnv(os.Getenv("ENV_FILE")); err != nil {
		slog.Error("Failed to load env file", "error", err)
		os.Exit(1)
	}
	logging.Setup()

	cfg, err := config.LoadScanner()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	camera, err := openCamera(cfg.Camera)
	if err != nil {
		slog.Error("Invalid camera", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		go func() {
			if err := http.ListenAndServe(*metricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	client := cardscanv1connect.NewScanServiceClient(http.DefaultClient, cfg.ServerURL,
		connect.WithInterceptors(middleware.BearerToken(cfg.Token)),
	)
	s := scanner.New(client, camera,
		scanner.WithPollInterval(cfg.PollInterval),
		scanner.WithAllowDuplicates(*allowDuplicates),
		scanner.WithMetrics(m),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controls := make(chan scanner.Control, 4)
	go readStdin(controls)
	go watchVisibility(ctx, controls)

	fmt.Fprintln(os.Stderr, "Hold a card in front of the camera. Press Enter to capture manually, Ctrl-C to quit.")

	if *once {
		res, err := s.ScanOnce(ctx, controls)
		if err != nil {
			exit(err)
			return
		}
		printResult(res)
		return
	}
	if err := s.Run(ctx, controls, printResult); err != nil {
		exit(err)
	}
}

// openCamera parses SCANNER_CAMERA: dir:<path> or an http(s) snapshot URL.
func openCamera(value string) (capture.Camera, error) {
	switch {
	case strings.HasPrefix(value, "dir:"):
		return capture.NewDirCamera(strings.TrimPrefix(value, "dir:")), nil
	case strings.HasPrefix(value, "http://"), strings.HasPrefix(value, "https://"):
		return capture.NewHTTPCamera(value, nil), nil
	default:
		return nil, fmt.Errorf("unsupported camera %q, want dir:<path> or an http(s) URL", value)
	}
}

// readStdin turns every Enter into a manual capture.
func readStdin(controls chan<- scanner.Control) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		controls <- scanner.ControlTrigger
	}
}

// watchVisibility maps SIGUSR1 to hiding the capture view and SIGUSR2 to
// showing it again.
func watchVisibility(ctx context.Context, controls chan<- scanner.Control) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig == syscall.SIGUSR1 {
				controls <- scanner.ControlHide
			} else {
				controls <- scanner.ControlShow
			}
		}
	}
}

func printResult(res *scanner.Result) {
	c := res.Contact
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	switch {
	case !res.Saved:
		fmt.Printf("Duplicate of %s %s (%s match), not saved\n", res.DuplicateOf.FirstName, res.DuplicateOf.LastName, res.MatchRule)
	case res.Capture.Partial:
		fmt.Printf("Saved partial card: %s %s %s\n", name, c.Email, c.Phone)
	default:
		fmt.Printf("Saved %s <%s> %s, %s\n", name, c.Email, c.Phone, c.Company)
	}
	if res.QuotaWarning {
		fmt.Printf("Warning: %d of %d scans used this cycle\n", res.Used, res.Limit)
	}
}

func exit(err error) {
	switch {
	case errors.Is(err, scanner.ErrLimitReached):
		fmt.Fprintln(os.Stderr, "Scan limit reached for this billing cycle.")
	case errors.Is(err, capture.ErrCameraUnavailable):
		fmt.Fprintln(os.Stderr, "Camera unavailable:", err)
	case errors.Is(err, capture.ErrCancelled):
		return
	default:
		slog.Error("Scan failed", "error", err)
	}
	os.Exit(1)
}
