package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	appcfg "github.com/jo-hoe/mbtisong/internal/config"
	"github.com/jo-hoe/mbtisong/internal/jobs"
	"github.com/jo-hoe/mbtisong/internal/metrics"
	"github.com/jo-hoe/mbtisong/internal/processor"
	"github.com/jo-hoe/mbtisong/internal/server"
	"github.com/jo-hoe/mbtisong/internal/storage"
	"github.com/jo-hoe/mbtisong/internal/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the song worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(rootCtx context.Context) error {
	cfg, err := appcfg.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, cfg.Server.LogLevel)

	// Jobs and the sqlite engagement backend share one database.
	db, err := util.OpenSQLite(cfg.Server.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	store, err := jobs.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	recorder, err := newRecorder(rootCtx, cfg.Recorder, db)
	if err != nil {
		return fmt.Errorf("init engagement recorder: %w", err)
	}

	m := metrics.New()
	writer, err := newWriter(cfg.Lyrics, logger)
	if err != nil {
		return err
	}
	music := newMusicClient(cfg.Music, logger, m)
	if !music.Configured() {
		logger.Warn("music api token missing; song requests will fail with ConfigurationMissing")
	}
	audio := storage.NewAudioStore(cfg.Server.StorageDir, nil, 0)

	worker := processor.New(logger, store, writer, music, processor.Options{
		Audio:           audio,
		Observer:        m,
		CallbackRetries: cfg.Server.CallbackRetries,
		CallbackBackoff: cfg.Server.CallbackBackoff,
	})
	queue := jobs.NewQueue(logger, cfg.Server.QueueCapacity, cfg.Server.WorkerCount)
	queue.OnDrop(func(item jobs.WorkItem) {
		if err := store.SaveError(item.Job.ID, "Canceled", "server shut down before the job started", time.Now().UTC()); err != nil {
			logger.Error("save dropped job", "job_id", item.Job.ID, "err", err)
		}
	})
	if err := queue.Start(rootCtx, worker); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}
	m.QueueDepth(queue.Len)

	httpSrv := server.NewHTTPServer(&server.Service{
		Log:       logger,
		Cfg:       cfg,
		Store:     store,
		Queue:     queue,
		Processor: worker,
		Writer:    writer,
		Audio:     audio,
		Recorder:  recorder,
		Metrics:   m,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "address", cfg.Server.Addr,
			"lyrics_provider", cfg.Lyrics.Provider, "recorder", cfg.Recorder.Backend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("server error", "err", serveErr)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	queue.Shutdown(cfg.Server.ShutdownGrace)
	logger.Info("server stopped")
	return serveErr
}
