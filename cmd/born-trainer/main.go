// Package main provides the born-trainer CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/born-ml/trainer/internal/artifact"
	"github.com/born-ml/trainer/internal/config"
	"github.com/born-ml/trainer/internal/data"
	"github.com/born-ml/trainer/internal/logging"
	"github.com/born-ml/trainer/internal/model"
	"github.com/born-ml/trainer/internal/results"
	"github.com/born-ml/trainer/internal/tracking"
	"github.com/born-ml/trainer/internal/trackserver"
	"github.com/born-ml/trainer/internal/trainer"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "born-trainer:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Born Trainer - training, checkpointing and k-fold cross-validation")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version         Show version")
	fmt.Fprintln(w, "  fit             Train once and save the model checkpoint")
	fmt.Fprintln(w, "  crossval        Run k-fold cross-validation")
	fmt.Fprintln(w, "  serve-tracking  Serve the run tracking API")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "All commands except version take -config <file.yaml>.")
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "Born Trainer %s\n", version)
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	case "fit", "crossval", "serve-tracking":
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", cmd)
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.String("config", "born-trainer.yaml", "Path to the YAML configuration file")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd == "serve-tracking" {
		return serveTracking(ctx, *configPath, stdout)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, stdout)
	if err != nil {
		return err
	}
	defer closer.Close()

	switch cmd {
	case "fit":
		return fit(ctx, cfg, logger)
	default:
		return crossValidate(ctx, cfg, logger)
	}
}

func newLogger(cfg *config.Config, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	return logging.New(logging.Config{
		Path:       cfg.Log.Path,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Stdout:     stdout,
	})
}

func fit(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.trainer.Fit(ctx, app.model, app.train, app.val); err != nil {
		return err
	}
	path, err := app.trainer.SaveModelCheckpoint(ctx, app.model)
	if err != nil {
		return err
	}
	logger.Info("training finished", "checkpoint", path)
	return nil
}

func crossValidate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	folds, err := app.trainer.CrossValidate(ctx, app.model, app.train, app.val, cfg.Folds)
	if err != nil {
		return err
	}
	for i, res := range folds {
		attrs := []any{"fold", i}
		for _, k := range slices.Sorted(maps.Keys(res)) {
			attrs = append(attrs, k, res[k])
		}
		logger.Info("fold result", attrs...)
	}
	return nil
}

// app holds everything a training command needs.
type app struct {
	trainer *trainer.Trainer
	model   *model.MLP
	train   *data.Loader
	val     *data.Loader
	closers []io.Closer
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	client, err := trackingClient(cfg, logger, a)
	if err != nil {
		return nil, err
	}
	cache, err := resultsCache(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}
	uploader, err := artifactUploader(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.train, a.val, err = loaders(cfg)
	if err != nil {
		return nil, err
	}
	a.model, err = model.NewMLP(model.Config{
		Hidden:    cfg.Model.Hidden,
		Classes:   cfg.Model.Classes,
		Optimizer: cfg.Model.Optimizer,
		LR:        cfg.Model.LR,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	a.trainer, err = trainer.New(trainer.Options{
		Project:       cfg.Project,
		ModelName:     cfg.ModelName,
		MaxEpochs:     cfg.MaxEpochs,
		Devices:       cfg.Devices,
		Monitor:       cfg.Monitor,
		Mode:          cfg.Mode,
		RefreshRate:   cfg.RefreshRate,
		CheckpointDir: cfg.CheckpointDir,
		LogDir:        cfg.LogDir,
		ResultsRoot:   cfg.ResultsRoot,
		Tracking:      client,
		Cache:         cache,
		Uploader:      uploader,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

func trackingClient(cfg *config.Config, logger *slog.Logger, a *app) (tracking.Client, error) {
	switch {
	case cfg.Tracking.URL != "":
		logger.Info("tracking through server", "url", cfg.Tracking.URL)
		return tracking.NewHTTPClient(cfg.Tracking.URL, &http.Client{Timeout: 30 * time.Second}), nil
	case cfg.Tracking.DB.Driver != "":
		store, closer, err := openStore(cfg.Tracking.DB, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closer)
		return store, nil
	default:
		logger.Warn("no tracking backend configured, remote logging disabled")
		return tracking.Nop{}, nil
	}
}

func openStore(cfg tracking.DBConfig, logger *slog.Logger) (*tracking.Store, io.Closer, error) {
	db, err := tracking.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	store, err := tracking.NewStore(db, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return store, sqlDB, nil
}

func resultsCache(ctx context.Context, cfg *config.Config, logger *slog.Logger, a *app) (results.Cache, error) {
	if cfg.Cache.Redis.Host == "" {
		return results.FileCache{}, nil
	}
	client, err := results.NewRedisClient(ctx, cfg.Cache.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client)
	logger.Info("results cache enabled", "redis", cfg.Cache.Redis.Host)
	return results.Layered{
		results.FileCache{},
		results.NewRedisCache(client, cfg.Cache.Redis.Prefix),
	}, nil
}

func artifactUploader(cfg *config.Config, logger *slog.Logger) (artifact.Uploader, error) {
	s3cfg := cfg.Artifacts.S3
	if s3cfg.Bucket == "" {
		return nil, nil
	}
	client, err := artifact.NewS3Client(s3cfg)
	if err != nil {
		return nil, err
	}
	return artifact.NewS3Uploader(client, s3cfg.Bucket, s3cfg.Prefix, logger), nil
}

func loaders(cfg *config.Config) (*data.Loader, *data.Loader, error) {
	var train, val data.Dataset
	switch cfg.Data.Source {
	case "csv":
		t, err := data.LoadCSV(cfg.Data.TrainPath, cfg.Data.MaxSamples, cfg.Data.Scale)
		if err != nil {
			return nil, nil, err
		}
		v, err := data.LoadCSV(cfg.Data.ValPath, cfg.Data.MaxSamples, cfg.Data.Scale)
		if err != nil {
			return nil, nil, err
		}
		train, val = t, v
	default:
		b := cfg.Data.Blobs
		t, err := data.Blobs(data.BlobsConfig{
			Samples: b.Train, Features: b.Features, Classes: b.Classes, Spread: b.Spread, Seed: cfg.Seed,
		})
		if err != nil {
			return nil, nil, err
		}
		v, err := data.Blobs(data.BlobsConfig{
			Samples: b.Val, Features: b.Features, Classes: b.Classes, Spread: b.Spread, Seed: cfg.Seed + 1,
		})
		if err != nil {
			return nil, nil, err
		}
		train, val = t, v
	}

	lc := data.LoaderConfig{BatchSize: cfg.Data.BatchSize, Shuffle: true, Seed: cfg.Seed}
	return data.NewLoader(train, lc), data.NewLoader(val, data.LoaderConfig{BatchSize: cfg.Data.BatchSize}), nil
}

func serveTracking(ctx context.Context, path string, stdout io.Writer) error {
	cfg, err := config.Read(path)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, stdout)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, dbCloser, err := openStore(cfg.Tracking.DB, logger)
	if err != nil {
		return err
	}
	defer dbCloser.Close()

	srv := &http.Server{
		Addr:              cfg.Tracking.Listen,
		Handler:           trackserver.NewRouter(trackserver.NewHandler(store, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tracking server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("tracking server shutting down")
	return srv.Shutdown(shutdownCtx)
}
