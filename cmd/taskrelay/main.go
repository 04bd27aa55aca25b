package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/sunthar/taskrelay/internal/agentrun"
	"github.com/sunthar/taskrelay/internal/archive"
	"github.com/sunthar/taskrelay/internal/config"
	"github.com/sunthar/taskrelay/internal/event"
	"github.com/sunthar/taskrelay/internal/normalizer"
	"github.com/sunthar/taskrelay/internal/notion"
	"github.com/sunthar/taskrelay/internal/resolution"
	"github.com/sunthar/taskrelay/internal/server"
	"github.com/sunthar/taskrelay/internal/slack"
	"github.com/sunthar/taskrelay/internal/tool"
	"github.com/sunthar/taskrelay/internal/toolset"
	"github.com/sunthar/taskrelay/internal/transport"
	"github.com/sunthar/taskrelay/internal/workflow"
	"github.com/sunthar/taskrelay/pkg/clog"
	"github.com/sunthar/taskrelay/pkg/panicerr"
	"github.com/sunthar/taskrelay/pkg/storage"
)

const version = "0.1.0"

var (
	app = kingpin.New("taskrelay", "Turn meeting transcripts into reviewed tasks")

	serveCmd = app.Command("serve", "Run the transcript and tool server")

	processCmd      = app.Command("process", "Process one transcript and exit")
	processFile     = processCmd.Flag("file", "Transcript file (defaults to stdin)").Short('f').String()
	processAgent    = processCmd.Flag("agent", "Delegate processing to an external agent session").Bool()
	processMaxTurns = processCmd.Flag("max-turns", "Turn limit for the delegated agent").Default("20").Int()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogger(env)

	switch command {
	case serveCmd.FullCommand():
		if err := runServe(env); err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	case processCmd.FullCommand():
		if err := runProcess(env); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("✗ %v", err))
			os.Exit(1)
		}
	}
}

func setupLogger(env *config.Env) {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}

func setupStorage(ctx context.Context, env *config.Env) (storage.Storage, error) {
	switch env.StorageEnv.Type {
	case "s3":
		return storage.NewS3Storage(ctx, env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
	default:
		return storage.NewLocalStorage(env.StorageEnv.BaseDir)
	}
}

// buildPipeline wires the shared pieces used by both serve and process.
func buildPipeline(ctx context.Context, env *config.Env, publisher workflow.Publisher) (*workflow.Workflow, *notion.Client, *slack.Client, *archive.Archive, error) {
	store, err := setupStorage(ctx, env)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to set up storage: %w", err)
	}

	notionClient := notion.NewClient(env.NotionEnv.APIKey)
	slackClient := slack.NewClient(env.SlackEnv.WebhookURL)
	norm := normalizer.New(env.OpenAIEnv.APIKey, env.OpenAIEnv.Model, env.OpenAIEnv.BaseURL)
	arch := archive.New(store)

	wf := workflow.New(norm, notionClient, slackClient, publisher, arch, env.NotionEnv.DatabaseID)
	return wf, notionClient, slackClient, arch, nil
}

func runServe(env *config.Env) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	bus, err := event.NewBus()
	if err != nil {
		return err
	}

	eventLogger, err := event.NewLogger(env.StorageEnv.BaseDir + "/events")
	if err != nil {
		return err
	}
	event.RegisterLogger(bus, eventLogger)

	if hooks, err := event.LoadHooks(env.HooksEnv.Path); err == nil {
		executor := event.NewHookExecutor(hooks)
		event.RegisterHooks(bus, executor)
		panicerr.Go(ctx, "watch-hooks", func(ctx context.Context) error {
			err := event.WatchHooks(ctx, env.HooksEnv.Path, executor)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		slog.Info("loaded hooks", "path", env.HooksEnv.Path, "count", len(hooks))
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load hooks: %w", err)
	}

	wf, notionClient, slackClient, arch, err := buildPipeline(ctx, env, bus)
	if err != nil {
		return err
	}

	registry := tool.NewRegistry()
	if err := toolset.New(notionClient, slackClient, env.NotionEnv.DatabaseID).Register(registry); err != nil {
		return err
	}

	transportHandler := transport.NewHandler(transport.NewManager(), registry, "taskrelay", version)
	resolver := resolution.New(notionClient, slackClient, bus)
	srv := server.NewServer(env, transportHandler, resolver, wf, arch)

	panicerr.Go(ctx, "event-bus", func(ctx context.Context) error {
		err := bus.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	go func() {
		slog.Info("starting server", "host", env.HTTPHost, "port", env.HTTPPort)
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return bus.Stop()
}

func runProcess(env *config.Env) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	transcript, err := readTranscript(*processFile)
	if err != nil {
		return err
	}

	if *processAgent {
		runner := agentrun.New(".", *processMaxTurns)
		report, err := runner.ProcessTranscript(ctx, transcript)
		if err != nil {
			return err
		}
		fmt.Println(color.CyanString("Agent report:"))
		fmt.Println(report)
		return nil
	}

	wf, _, _, _, err := buildPipeline(ctx, env, nil)
	if err != nil {
		return err
	}
	if err := wf.Validate(); err != nil {
		return err
	}

	run, err := wf.ProcessTranscript(ctx, transcript)
	if err != nil {
		return err
	}
	printRun(run)
	if run.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", run.Failed, len(run.Items))
	}
	return nil
}

func readTranscript(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read transcript from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript file: %w", err)
	}
	return string(data), nil
}

func printRun(run *archive.Run) {
	bold := color.New(color.Bold)
	bold.Printf("%s\n", run.MeetingTitle)
	if run.Summary != "" {
		fmt.Println(run.Summary)
	}
	fmt.Printf("run %s, %d item(s)\n\n", run.ID, len(run.Items))

	for _, item := range run.Items {
		if item.Error != "" {
			fmt.Printf("%s %s: %s\n", color.RedString("✗"), item.Title, item.Error)
			continue
		}
		fmt.Printf("%s %s\n    %s\n", color.GreenString("✓"), item.Title, item.TaskURL)
	}
}
