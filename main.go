package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"videorag/config"
	"videorag/core"
	"videorag/embedding"
	"videorag/processors"
	"videorag/retrieval"
	"videorag/server"
	"videorag/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "videorag",
		Usage: "video RAG pipeline: ingest videos, query them, serve over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Usage: "path to a .env file", Value: ".env"},
			&cli.BoolFlag{Name: "debug", Usage: "human-readable debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "ingest one video file",
				ArgsUsage: "<video-path>",
				Action:    runIngest,
			},
			{
				Name:      "batch",
				Usage:     "ingest several video files, isolating per-video failures",
				ArgsUsage: "<video-path>...",
				Action:    runBatch,
			},
			{
				Name:  "query",
				Usage: "ask a question over ingested videos",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Usage: "the question to answer", Required: true},
					&cli.StringFlag{Name: "video", Usage: "restrict the search to one video id"},
					&cli.StringFlag{Name: "frames", Usage: "keyframe directory to attach images from"},
				},
				Action: runQuery,
			},
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address", Value: ":8080"},
				},
				Action: runServe,
			},
			{
				Name:      "cleanup",
				Usage:     "remove every stored unit of one video",
				ArgsUsage: "<video-id>",
				Action:    runCleanup,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    storage.VectorStore
	pipeline *processors.Pipeline
	engine   *retrieval.Engine
}

func setup(ctx context.Context, cmd *cli.Command) (*app, func(), error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := core.NewLogger(cmd.Bool("debug"))
	if err != nil {
		return nil, nil, err
	}

	text, image, err := embedding.NewEncoders(cfg)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		pipeline: processors.NewPipeline(cfg, log, store, text, image),
		engine:   retrieval.NewEngine(cfg, log, store, text, retrieval.NewGenerator(cfg)),
	}
	cleanup := func() {
		_ = store.Close(context.Background())
		_ = log.Sync()
	}
	return a, cleanup, nil
}

func runIngest(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("ingest takes exactly one video path")
	}
	a, done, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer done()

	result, err := a.pipeline.IngestVideo(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(string(core.MustJSON(result)))
	return nil
}

func runBatch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("batch takes at least one video path")
	}
	a, done, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer done()

	results := a.pipeline.IngestBatch(ctx, cmd.Args().Slice())
	fmt.Println(string(core.MustJSON(results)))
	return nil
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	a, done, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer done()

	result, err := a.engine.Query(ctx, retrieval.QueryRequest{
		Question: cmd.String("question"),
		VideoID:  cmd.String("video"),
		FrameDir: cmd.String("frames"),
	})
	if err != nil {
		return err
	}

	answer, evidence, citations := retrieval.SplitAnswer(result.Answer)
	fmt.Println(answer)
	fmt.Println()
	fmt.Println(evidence)
	fmt.Println()
	fmt.Println(citations)
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	a, done, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer done()

	srv := &http.Server{
		Addr:    cmd.String("addr"),
		Handler: server.New(a.pipeline, a.engine, a.store, a.log).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func runCleanup(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("cleanup takes exactly one video id")
	}
	a, done, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer done()

	videoID := cmd.Args().First()
	removed, err := a.store.DeleteVideo(ctx, videoID)
	if err != nil {
		return err
	}
	a.log.Info("video removed", zap.String("video", videoID), zap.Int("units", removed))
	fmt.Printf("Removed %d stored units for %s\n", removed, videoID)
	return nil
}
