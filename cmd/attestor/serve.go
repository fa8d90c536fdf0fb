package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"attestor/internal/artifacts"
	"attestor/internal/audit"
	"attestor/internal/comparison"
	"attestor/internal/confidence"
	"attestor/internal/credential"
	"attestor/internal/document"
	"attestor/internal/extraction"
	"attestor/internal/extraction/assist"
	"attestor/internal/ocr"
	"attestor/internal/ocr/googlevision"
	"attestor/internal/platform/config"
	"attestor/internal/platform/httpserver"
	"attestor/internal/platform/metrics"
	"attestor/internal/platform/redis"
	"attestor/internal/quality"
	httptransport "attestor/internal/transport/http"
	"attestor/internal/verification"
	"attestor/internal/verification/handler"
	vmetrics "attestor/internal/verification/metrics"
)

var serve = &cli.Command{
	Name:  "serve",
	Usage: "Start the HTTP API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			EnvVars: []string{"ATTESTOR_ADDR"},
		},
	},
	Action: func(cmd *cli.Context) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.IsSet("addr") {
			cfg.Server.Addr = cmd.String("addr")
		}

		ctx, stop := signal.NotifyContext(cmd.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, newLogger(cfg))
	},
}

// run wires dependencies, serves until ctx is cancelled, then drains.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	key, created, err := credential.LoadOrGenerateKey(cfg.Issuer.KeyFile)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	if created {
		log.Warn("generated new signing key", "path", cfg.Issuer.KeyFile)
	}
	issuer, err := credential.NewIssuer(key, credential.WithIdentity(cfg.Issuer.DID, cfg.Issuer.Name))
	if err != nil {
		return err
	}

	comparator, err := newComparator(cfg, log)
	if err != nil {
		return err
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	opts := []verification.Option{
		verification.WithExtractor(newExtractor(cfg, log)),
		verification.WithScorer(quality.NewScorer(quality.Thresholds{
			Sharpness:     cfg.Quality.Sharpness,
			BrightnessMin: cfg.Quality.BrightnessMin,
			BrightnessMax: cfg.Quality.BrightnessMax,
			ContrastMin:   cfg.Quality.ContrastMin,
		})),
		verification.WithComparator(comparator),
		verification.WithAggregator(confidence.NewAggregator(cfg.Verification.AcceptanceThreshold)),
		verification.WithLogger(log),
		verification.WithMetrics(vmetrics.New()),
	}

	var lazy *ocr.Lazy
	if cfg.OCR.CredentialsFile != "" {
		lazy = ocr.NewLazy(googlevision.Builder(cfg.OCR.CredentialsFile), log)
		closers = append(closers, func() { _ = lazy.Close() })
		opts = append(opts, verification.WithRecognizer(lazy))
	}

	if cfg.Assist.APIKey != "" {
		gemini, err := assist.NewGemini(ctx, cfg.Assist.APIKey, cfg.Assist.Model)
		if err != nil {
			return fmt.Errorf("assisted extraction: %w", err)
		}
		closers = append(closers, func() { _ = gemini.Close() })
		opts = append(opts, verification.WithAssistant(assist.NewSource(gemini, log)))
	}

	if cfg.Issuer.TrustURL != "" {
		resolver, err := credential.NewRemoteResolver(ctx, cfg.Issuer.TrustURL, 15*time.Minute)
		if err != nil {
			return err
		}
		opts = append(opts, verification.WithVerifier(credential.NewVerifier(resolver)))
	}

	checks := map[string]httptransport.Check{}
	store, err := newStore(ctx, cfg, checks, &closers)
	if err != nil {
		return err
	}
	opts = append(opts, verification.WithStore(store))

	sink, err := newAuditSink(ctx, cfg, log, &closers)
	if err != nil {
		return err
	}
	opts = append(opts, verification.WithAuditor(audit.NewEmitter(sink, log)))

	svc, err := verification.NewService(issuer, opts...)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Options{
		Logger:  log,
		Metrics: metrics.NewHTTP(),
		Checks:  checks,
		Info: func() map[string]any {
			return map[string]any{
				"version":   Version,
				"issuer":    issuer.Identity().ID,
				"ocr_ready": lazy != nil && lazy.Ready(),
			}
		},
	}, handler.New(svc, log))

	log.Info("starting attestor", "version", Version, "issuer", issuer.Identity().ID)
	return httpserver.New(cfg.Server, router, log).Run(ctx)
}

func newExtractor(cfg config.Config, log *slog.Logger) *extraction.Extractor {
	opts := []extraction.Option{extraction.WithLogger(log)}
	if cfg.Verification.DocumentPass {
		opts = append(opts, extraction.WithDocumentPass())
	}
	return extraction.New(opts...)
}

func newComparator(cfg config.Config, log *slog.Logger) (*comparison.Comparator, error) {
	metric, err := comparison.MetricByName(cfg.Verification.SimilarityMetric)
	if err != nil {
		return nil, err
	}
	informational := make([]document.FieldName, 0, len(cfg.Verification.Informational))
	for _, raw := range cfg.Verification.Informational {
		name, err := document.ParseFieldName(raw)
		if err != nil {
			return nil, fmt.Errorf("informational fields: %w", err)
		}
		informational = append(informational, name)
	}
	return comparison.New(
		comparison.WithFuzzyThreshold(cfg.Verification.FuzzyThreshold),
		comparison.WithMetric(metric),
		comparison.WithInformational(informational...),
		comparison.WithLogger(log),
	), nil
}

func newStore(ctx context.Context, cfg config.Config, checks map[string]httptransport.Check, closers *[]func()) (artifacts.Store, error) {
	if cfg.Storage.Backend != "redis" {
		return artifacts.NewMemoryStore(cfg.Storage.MaxEntries, cfg.Storage.ArtifactTTL), nil
	}
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { _ = client.Close() })
	checks["redis"] = client.Health
	return artifacts.NewRedisStore(client.Client, cfg.Storage.ArtifactTTL), nil
}

func newAuditSink(ctx context.Context, cfg config.Config, log *slog.Logger, closers *[]func()) (audit.Publisher, error) {
	switch cfg.Audit.Sink {
	case "none":
		return audit.NopPublisher{}, nil
	case "kafka":
		kafka, err := audit.NewKafkaPublisher(cfg.Audit.Brokers, cfg.Audit.Topic)
		if err != nil {
			return nil, err
		}
		async := audit.NewAsyncPublisher(kafka, 1024, log)
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		go async.Run(runCtx)
		*closers = append(*closers, func() {
			cancel()
			async.Wait()
			kafka.Close()
		})
		return async, nil
	default:
		return audit.NewLogPublisher(log), nil
	}
}
