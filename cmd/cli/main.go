package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/apivet/apivet/pkg/advisor"
	"github.com/apivet/apivet/pkg/config"
	"github.com/apivet/apivet/pkg/core"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/httpclient"
	"github.com/apivet/apivet/pkg/output"
	"github.com/apivet/apivet/pkg/output/hooks"
	"github.com/apivet/apivet/pkg/probes"
	"github.com/apivet/apivet/pkg/ui"
)

// Exit codes: 0 clean, 1 vulnerabilities found, 2 usage or setup error,
// 3 scan aborted.
const (
	exitClean      = 0
	exitVulnerable = 1
	exitUsage      = 2
	exitAborted    = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	if cfg.NoColor {
		ui.SetNoColor(true)
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.Format == "console" {
		ui.Banner(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := probes.DefaultRegistry(httpclient.Default())

	var adv advisor.Advisor
	switch cfg.Advisor {
	case "openai":
		adv = advisor.NewOpenAI(os.Getenv("OPENAI_API_KEY"), cfg.AdvisorModel)
	case "anthropic":
		adv = advisor.NewAnthropic(os.Getenv("ANTHROPIC_API_KEY"), cfg.AdvisorModel)
	default:
		adv = advisor.NewHeuristic(registry)
	}

	var hookSet hooks.Multi
	if cfg.MetricsPort > 0 {
		h, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{Port: cfg.MetricsPort})
		if err != nil {
			logger.Error("prometheus hook disabled", slog.String("error", err.Error()))
		} else {
			hookSet = append(hookSet, h)
			logger.Info("metrics served", slog.String("addr", h.MetricsAddr()))
		}
	}
	if cfg.OTelEndpoint != "" {
		h, err := hooks.NewOTelHook(hooks.OTelOptions{Endpoint: cfg.OTelEndpoint, Insecure: true})
		if err != nil {
			logger.Error("otel hook disabled", slog.String("error", err.Error()))
		} else {
			hookSet = append(hookSet, h)
		}
	}
	defer func() {
		if err := hookSet.Close(); err != nil {
			logger.Warn("hook shutdown", slog.String("error", err.Error()))
		}
	}()

	orch := core.NewOrchestrator(core.Config{
		Target:       cfg.Target,
		Headers:      cfg.Headers,
		Concurrency:  cfg.Concurrency,
		RateLimit:    cfg.RateLimit,
		ProbeTimeout: cfg.ProbeTimeout.Std(),
		Advisor:      adv,
		OnStart: func(scanID string, probeCount int) {
			if err := hookSet.OnScanStart(ctx, scanID, cfg.Target, probeCount); err != nil {
				logger.Warn("hook error", slog.String("error", err.Error()))
			}
		},
		OnBatch: func(probe string, findings []finding.Finding) {
			if err := hookSet.OnFindings(ctx, probe, findings); err != nil {
				logger.Warn("hook error", slog.String("probe", probe), slog.String("error", err.Error()))
			}
		},
	}, registry, core.WithLogger(logger))

	res, scanErr := orch.Scan(ctx, cfg.Probes)
	if scanErr != nil && res == nil {
		var invalid *core.InvalidSelectionError
		if errors.As(scanErr, &invalid) {
			fmt.Fprintln(os.Stderr, invalid.Error())
			fmt.Fprintf(os.Stderr, "available: %v\n", registry.Names())
			return exitUsage
		}
		fmt.Fprintln(os.Stderr, scanErr)
		return exitAborted
	}

	if err := hookSet.OnScanComplete(ctx, res.Snapshot, res.Score, res.Level); err != nil {
		logger.Warn("hook error", slog.String("error", err.Error()))
	}

	if err := writeReport(cfg, output.Report{Snapshot: res.Snapshot, Score: res.Score, Level: res.Level}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	if scanErr != nil {
		return exitAborted
	}
	if res.Snapshot.Summary.VulnerabilitiesFound > 0 {
		return exitVulnerable
	}
	return exitClean
}

func writeReport(cfg *config.Config, rep output.Report) error {
	w, err := output.ForFormat(cfg.Format)
	if err != nil {
		return err
	}
	if cw, ok := w.(*output.ConsoleWriter); ok {
		cw.All = cfg.ShowAll
	}

	var dst io.Writer = os.Stdout
	if cfg.Output != "" && cfg.Output != "-" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("open report file: %w", err)
		}
		defer f.Close()
		dst = f
	}
	return w.Write(dst, rep)
}
