package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/authorization"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/classifier"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/directory"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation"
	caserepo "github.com/ovaphlow/pitchfork/service-litigation-go/internal/litigation/repo"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/mailbox"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-litigation-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-litigation-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-litigation-go/pkg/utilities"
)

func main() {
	// best-effort: without a .env the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-litigation-go")

	cfg, err := config.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	dir := directory.Default()
	if cfg.DirectoryFile != "" {
		if dir, err = directory.Load(cfg.DirectoryFile); err != nil {
			sugar.Fatalf("directory: %v", err)
		}
	}
	sugar.Infow("directory loaded", "companies", len(dir.Entries()), "overrides", len(dir.Overrides()))

	sqlxDB, err := database.ConnectX(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlxDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := userrepo.NewUserRepo(sqlxDB)
	cases := caserepo.NewCaseRepo(sqlxDB)
	if err := users.EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}
	if err := cases.EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure cases table: %v", err)
	}

	userSvc := user.NewUserService(sqlxDB, users, credential.NewSealer(cfg.CredentialKey), sugar)
	userSvc.SetClientDefaults(credential.Credential{
		TokenURI:     credential.GoogleTokenURI,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Scopes:       mailbox.Scopes,
	})

	m := metrics.New()
	gmail := mailbox.NewGmail(sugar, option.WithUserAgent("service-litigation-go"))

	scanner := litigation.NewScanner(cases, userSvc, gmail, newClassifier(cfg, sugar), dir, m, litigation.ScanConfig{
		Query:          cfg.ScanQuery,
		Limit:          cfg.ScanLimit,
		MailboxTimeout: cfg.MailboxTimeout,
	}, sugar)
	engine := litigation.NewEngine(cases, userSvc, gmail, dir, newSink(cfg, sugar), m, litigation.DispatchConfig{
		Scope:             cfg.DispatchScope,
		Workers:           cfg.DispatchWorkers,
		Timeout:           cfg.DispatchTimeout,
		NotifyTimeout:     10 * time.Second,
		FallbackRecipient: cfg.FallbackRecipient,
		CommissionPercent: cfg.CommissionPercent,
	}, sugar)

	guard, closeGuard := newReplayGuard(ctx, cfg, sugar)
	defer closeGuard()
	verifier := authorization.NewVerifier(cfg.EventSecret, cfg.EventMaxAge, guard)

	handler := router.RegisterRoutes(sugar, router.Handlers{
		Users:     user.NewHandler(userSvc, sugar),
		Cases:     litigation.NewHandler(scanner, litigation.NewCaseService(cases, sugar), sugar),
		Billing:   authorization.NewHandler(verifier, engine, m, sugar),
		Directory: directory.NewHandler(dir, sugar),
		Metrics:   m.Handler(),
	}, cfg.APIKey)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running", "addr", cfg.HTTPAddr, "dispatch_scope", cfg.DispatchScope)

	<-ctx.Done()

	sugar.Info("shutting down")

	// dispatches run detached from requests; give them time to settle
	doneCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func newClassifier(cfg config.Config, logger *zap.SugaredLogger) *classifier.Adapter {
	var oracle classifier.Oracle = classifier.NoCaseOracle{}
	if cfg.ClassifierURL != "" {
		oracle = classifier.NewOpenAI(&http.Client{}, cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.ClassifierModel)
	} else {
		logger.Warn("CLASSIFIER_URL not set; every message classifies as no case")
	}
	return classifier.NewAdapter(oracle, cfg.ClassifyTimeout, logger)
}

func newSink(cfg config.Config, logger *zap.SugaredLogger) notify.Sink {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
		logger.Info("telegram not configured; operator notifications disabled")
		return notify.Nop{}
	}
	return notify.NewTelegram(notify.TelegramConfig{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
	}, logger)
}

// newReplayGuard uses Redis when configured so event ids stay single-use
// across instances and restarts.
func newReplayGuard(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (authorization.ReplayGuard, func()) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set; authorization replay guard is in-process only")
		return authorization.NewMemoryGuard(), func() {}
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("redis url: %v", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatalf("redis ping: %v", err)
	}
	return authorization.NewRedisGuard(client), func() { _ = client.Close() }
}
