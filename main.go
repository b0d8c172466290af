package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hjoncour/gh-to-gl-migrator/dispatch"
	"github.com/hjoncour/gh-to-gl-migrator/forge"
	"github.com/hjoncour/gh-to-gl-migrator/internal/lock"
	"github.com/hjoncour/gh-to-gl-migrator/internal/utils"
	"github.com/hjoncour/gh-to-gl-migrator/mirror"
	"github.com/hjoncour/gh-to-gl-migrator/policy"
	"github.com/hjoncour/gh-to-gl-migrator/repository"
	"github.com/hjoncour/gh-to-gl-migrator/syncer"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": utils.LevelTrace,
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Sources: cli.EnvVars("GH2GL_CONFIG"),
			Usage:   "Absolute path to the config file. Optional, config can be provided by env.",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
			Usage:   "Log level",
		},
		&cli.DurationFlag{
			Name:    "deadlock-timeout",
			Sources: cli.EnvVars("DEADLOCK_TIMEOUT"),
			Usage:   "If set, lock order and lock wait time are checked and a deadlock is reported after this timeout.",
		},
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

func setupLogger(level string) {
	// set log level according to argument
	if v, ok := levelStrings[strings.ToLower(level)]; ok {
		loggerLevel.Set(v)
	}

	opts := &slog.HandlerOptions{Level: loggerLevel}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	slog.SetDefault(logger)
}

func main() {
	cmd := &cli.Command{
		Name:  "gh-to-gl-migrator",
		Usage: "gh-to-gl-migrator mirrors a GitHub repository onto a GitLab project.",
		Flags: flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			setupLogger(c.String("log-level"))
			if t := c.Duration("deadlock-timeout"); t > 0 {
				lock.EnableDetection(t)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Mirror the event of the current GitHub Actions run.",
				Action: runAction,
			},
			{
				Name:   "serve",
				Usage:  "Serve GitHub webhooks and mirror every push.",
				Action: serveAction,
			},
			{
				Name:  "probe",
				Usage: "Check if the target project exists.",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "create",
						Usage: "Create the target project if it doesn't exist.",
					},
				},
				Action: probeAction,
			},
			{
				Name:   "env",
				Usage:  "Print the environment variables consumed by the CI workflow.",
				Action: envAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("failed to run app", "err", err)
		var stepErr *syncer.StepError
		if errors.As(err, &stepErr) {
			logger.Error("mirror step failed", "step", stepErr.Step, "ref", stepErr.Ref)
		}
		os.Exit(1)
	}
}

// newMirror creates local source mirror and the mirror of it onto target
func newMirror(conf *Config) (*mirror.Mirror, error) {
	if conf.Source.Remote == "" {
		return nil, fmt.Errorf("source remote is required, set source.remote or GITHUB_REPOSITORY")
	}

	mirrorPolicy, err := conf.mirrorPolicy()
	if err != nil {
		return nil, err
	}

	// git is looked up on PATH of the process
	gitENV := []string{fmt.Sprintf("PATH=%s", os.Getenv("PATH"))}

	repo, err := repository.New(conf.Source, "", gitENV, logger.With("logger", "repository"))
	if err != nil {
		return nil, fmt.Errorf("could not create source mirror: %w", err)
	}

	target := repo.Target(conf.targetURL(), conf.Target.Token)

	return mirror.New(mirror.Config{
		Target: conf.targetRef(),
		Policy: mirrorPolicy,
		Sync:   conf.syncOptions(),
	}, repo, target, logger.With("logger", "mirror")), nil
}

// ensureTarget probes the target project and creates it if allowed
func ensureTarget(ctx context.Context, conf *Config, create bool) (bool, error) {
	prober := forge.NewProber(forge.ClientOptions{}, logger.With("logger", "prober"))

	var creator forge.ProjectCreator
	if create {
		creator = forge.NewGitLabCreator(conf.Target.Token, forge.ClientOptions{}, logger.With("logger", "creator"))
	}

	return mirror.EnsureTarget(ctx, prober, creator, conf.targetRef(), conf.Target.Token, create,
		forge.CreateOptions{
			Visibility:  conf.Target.Visibility,
			Description: fmt.Sprintf("Mirror of %s", conf.Source.Remote),
		}, logger)
}

func runAction(ctx context.Context, c *cli.Command) error {
	conf, err := loadConfig(c.String("config"), os.LookupEnv)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}

	event, err := actionsEvent(os.LookupEnv)
	if errors.Is(err, errRefDeleted) {
		logger.Info("nothing to mirror", "reason", err)
		return nil
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, conf.RunTimeout)
	defer cancel()

	if conf.Target.CreateIfMissing {
		if _, err := ensureTarget(ctx, conf, true); err != nil {
			return err
		}
	}

	m, err := newMirror(conf)
	if err != nil {
		return err
	}

	report, err := m.Run(ctx, event)
	if err != nil {
		return err
	}
	if report == nil {
		logger.Info("event skipped by policy", "ref", event.Ref)
	}
	return nil
}

func serveAction(ctx context.Context, c *cli.Command) error {
	conf, err := loadConfig(c.String("config"), os.LookupEnv)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	if conf.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is required, set webhook.secret or WEBHOOK_SECRET")
	}

	m, err := newMirror(conf)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mirror.EnableMetrics("gh2gl", registry)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Target.CreateIfMissing {
		if _, err := ensureTarget(ctx, conf, true); err != nil {
			return err
		}
	}

	dispatcher := dispatch.New(ctx, func(ctx context.Context, event policy.PushEvent) error {
		ctx, cancel := context.WithTimeout(ctx, conf.RunTimeout)
		defer cancel()
		_, err := m.Run(ctx, event)
		return err
	}, logger.With("logger", "dispatcher"))

	mux := http.NewServeMux()
	mux.Handle("/github-webhook", &GithubWebhookHandler{
		dispatcher: dispatcher,
		remote:     conf.Source.Remote,
		secret:     conf.Webhook.Secret,
		log:        logger.With("logger", "github-webhook"),
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              conf.Webhook.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting webhook server", "listen", conf.Webhook.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("webhook server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("unable to shutdown webhook server", "err", err)
	}

	// running jobs are cancelled with ctx
	dispatcher.Wait()
	return nil
}

func probeAction(ctx context.Context, c *cli.Command) error {
	conf, err := loadConfig(c.String("config"), os.LookupEnv)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}

	create := c.Bool("create") || conf.Target.CreateIfMissing
	created, err := ensureTarget(ctx, conf, create)
	if err != nil {
		return err
	}

	status := "exists"
	if created {
		status = "created"
	}
	fmt.Fprintf(c.Root().Writer, "%s %s\n", conf.targetRef().String(), status)
	return nil
}

func envAction(ctx context.Context, c *cli.Command) error {
	conf, err := loadConfig(c.String("config"), os.LookupEnv)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}

	p, err := conf.mirrorPolicy()
	if err != nil {
		return err
	}

	envs := policy.Env(p.Mode, conf.targetRef().String())
	for _, k := range slices.Sorted(maps.Keys(envs)) {
		fmt.Fprintf(c.Root().Writer, "%s=%s\n", k, envs[k])
	}
	return nil
}
