// soundswitch watches a screen region for round banners and adjusts
// per-application volume to match the game phase.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/soundswitch/internal/config"
	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
	"github.com/GriffinCanCode/soundswitch/internal/imaging"
	"github.com/GriffinCanCode/soundswitch/internal/mixer"
	"github.com/GriffinCanCode/soundswitch/internal/ocr"
	"github.com/GriffinCanCode/soundswitch/internal/resilience"
	"github.com/GriffinCanCode/soundswitch/internal/rules"
	"github.com/GriffinCanCode/soundswitch/internal/screen"
	"github.com/GriffinCanCode/soundswitch/internal/server"
	"github.com/GriffinCanCode/soundswitch/internal/switcher"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("soundswitch failed", "error", err, "code", apperrors.CodeOf(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	table, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return err
	}
	slog.Info("volume rules loaded", "file", cfg.RulesFile, "processes", table.Processes())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	region := screen.Region{X: cfg.CaptureX, Y: cfg.CaptureY, Width: cfg.CaptureWidth, Height: cfg.CaptureHeight}
	capturer, err := screen.New(region)
	if err != nil {
		return err
	}
	defer capturer.Close()

	retry := resilience.StartupRetryConfig()
	retry.IsRetryable = func(err error) bool {
		return !errors.Is(err, ocr.ErrOCRNotEnabled) && apperrors.IsRetryable(err)
	}

	retry.Name = "ocr"
	engine, err := resilience.RetryValue(ctx, retry, func() (*ocr.Tesseract, error) {
		return ocr.New(ocr.Options{Language: cfg.OCRLanguage})
	})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	retry.Name = "audio"
	backend, err := resilience.RetryValue(ctx, retry, mixer.Open)
	if err != nil {
		return err
	}
	mix := mixer.New(backend, resilience.AudioConfig())
	defer func() { _ = mix.Close() }()

	dumper, err := imaging.NewDumper(cfg.DebugDir, cfg.DebugDump)
	if err != nil {
		return err
	}

	pipe := switcher.NewPipeline(capturer, engine, mix, table, dumper, switcher.Options{
		Interval: cfg.Interval(),
		Imaging: imaging.Options{
			Scale:     cfg.ScaleFactor,
			Contrast:  cfg.Contrast,
			Threshold: cfg.Threshold,
		},
		HashSkipDistance: cfg.HashSkipDistance,
		StableFrames:     cfg.StableFrames,
		Cooldown:         cfg.SwitchCooldown,
	})

	srv := server.New(pipe, func() bool { return pipe.Status().Serving() })

	// Bind before any goroutine starts so a bad address cannot strand them.
	grpcLis, err := listen(cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipe.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.HTTPAddr != "" {
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("http server starting", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if grpcLis != nil {
		grpcServer := srv.GRPC()
		g.Go(func() error {
			slog.Info("grpc health server starting", "addr", cfg.GRPCAddr)
			return grpcServer.Serve(grpcLis)
		})
		g.Go(func() error {
			<-ctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	slog.Info("soundswitch running",
		"region", region,
		"interval", cfg.Interval(),
		"stable_frames", cfg.StableFrames,
		"cooldown", cfg.SwitchCooldown,
	)
	return g.Wait()
}

// listen opens the gRPC listener; an empty addr disables it.
func listen(addr string) (net.Listener, error) {
	if addr == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "listen grpc").WithMetadata("addr", addr)
	}
	return lis, nil
}
