package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	logrusbugsnag "github.com/Shopify/logrus-bugsnag"
	bugsnag "github.com/bugsnag/bugsnag-go"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
	cli "github.com/urfave/cli/v3"

	"github.com/librariesio/keeper/aggregator"
	"github.com/librariesio/keeper/counts"
	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/discovery"
	"github.com/librariesio/keeper/ingestion"
	"github.com/librariesio/keeper/platforms"
	"github.com/librariesio/keeper/queue"
	"github.com/librariesio/keeper/redis"
	"github.com/librariesio/keeper/repos"
	"github.com/librariesio/keeper/scheduler"
	"github.com/librariesio/keeper/status"
	"github.com/librariesio/keeper/store"
	"github.com/librariesio/keeper/syncing"
)

func main() {
	cmd := &cli.Command{
		Name:  "keeper",
		Usage: "Package metadata aggregation and lifecycle engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "redis", Value: "localhost:6379", Usage: "Redis address", Sources: cli.EnvVars("REDIS_URL")},
			&cli.StringFlag{Name: "db-path", Value: "keeper.db", Usage: "SQLite database path", Sources: cli.EnvVars("DATABASE_PATH")},
			&cli.IntFlag{Name: "workers", Value: 5, Usage: "concurrent sync workers", Sources: cli.EnvVars("WORKERS")},
			&cli.StringFlag{Name: "bugsnag-api-key", Usage: "Bugsnag API key", Sources: cli.EnvVars("BUGSNAG_API_KEY")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, c.String("redis"), c.String("db-path"), int(c.Int("workers")), c.String("bugsnag-api-key"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, redisAddr, dbPath string, workers int, bugsnagKey string) error {
	setupLogger(bugsnagKey)
	log.Info("Starting Keeper")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	redisClient, err := redis.New(ctx, redisAddr)
	if err != nil {
		return err
	}

	client := platforms.NewClient()
	registry := platforms.NewRegistry(
		platforms.NewRubyGems("https://rubygems.org", client, st),
		platforms.NewPackagist("https://packagist.org", client, st),
		platforms.NewPyPi("https://pypi.org", client, st),
		platforms.NewGolang("https://proxy.golang.org", client, st),
	)
	if err := registry.Validate([]string{"rubygems", "packagist", "pypi", "go"}); err != nil {
		return err
	}

	agg := aggregator.New(st)
	resolver := status.New(client, st)
	jobs := queue.New(queue.NewRedisBroker(redisClient))
	orchestrator := syncing.New(registry, st, resolver, agg, jobs)
	repoService := repos.NewService(st, repos.NewGitHub("https://api.github.com", client))

	worker := queue.NewWorker(redisClient, workers, map[string]queue.Handler{
		queue.KindRefresh: func(ctx context.Context, packageID uint) error {
			_, err := orchestrator.Sync(ctx, packageID)
			return err
		},
		queue.KindRepoResolve: repoService.ResolveForPackage,
	})
	go worker.Run(ctx)

	pipeline := ingestion.NewPipeline(st, jobs, ingestion.NewRedisDeduper(redisClient))
	go pipeline.Run(ctx)

	bookmarks := discovery.NewBookmarks(redisClient)
	sched := scheduler.New(st, jobs, pipeline, counts.NewCache(time.Hour))
	discoverers := []discovery.Discoverer{
		discovery.NewPyPIRSS("https://pypi.org"),
		discovery.NewPyPIChangelog("https://pypi.org/pypi", bookmarks),
		discovery.NewGoIndex("https://index.golang.org/index", client),
	}
	for _, d := range discoverers {
		if err := sched.Register(ctx, d); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	runStream(ctx, discovery.NewNPMStream("https://replicate.npmjs.com", bookmarks), pipeline)

	<-ctx.Done()
	log.Info("Exiting")
	sched.Stop()
	return nil
}

// runStream forwards a streaming discoverer into the pipeline, restarting
// the stream when the feed drops.
func runStream(ctx context.Context, d discovery.StreamingDiscoverer, pipeline *ingestion.Pipeline) {
	releases := make(chan data.PackageVersion)
	go func() {
		for release := range releases {
			pipeline.Publish(release)
		}
	}()
	go func() {
		for ctx.Err() == nil {
			if err := d.Stream(ctx, releases); err != nil && ctx.Err() == nil {
				log.WithField("discoverer", d.Name()).WithError(err).Error("Stream dropped")
				time.Sleep(30 * time.Second)
			}
		}
		close(releases)
	}()
}

func setupLogger(bugsnagKey string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	// Send error-y logs to stderr and info-y logs to stdout
	log.SetOutput(io.Discard)
	log.AddHook(&writer.Hook{
		Writer: os.Stderr,
		LogLevels: []log.Level{
			log.PanicLevel,
			log.FatalLevel,
			log.ErrorLevel,
			log.WarnLevel,
		},
	})
	log.AddHook(&writer.Hook{
		Writer: os.Stdout,
		LogLevels: []log.Level{
			log.InfoLevel,
			log.DebugLevel,
		},
	})

	if bugsnagKey != "" {
		bugsnag.Configure(bugsnag.Configuration{APIKey: bugsnagKey})
		hook, err := logrusbugsnag.NewBugsnagHook()
		if err != nil {
			log.WithError(err).Error("Failed to set up Bugsnag hook")
		} else {
			log.AddHook(hook)
		}
	}

	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
