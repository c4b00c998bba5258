package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adnews/internal/api"
	"adnews/internal/api/handlers"
	"adnews/internal/cache"
	"adnews/internal/config"
	"adnews/internal/fetch"
	"adnews/internal/fetcher"
	"adnews/internal/history"
	"adnews/internal/logger"
	"adnews/internal/notifier"
	"adnews/internal/rates"
	"adnews/internal/scheduler"
	"adnews/internal/storage"

	"github.com/getsentry/sentry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// jobPlan описывает расписание задачи; отрицательная задержка отключает запуск при старте
type jobPlan struct {
	kind     scheduler.JobKind
	interval time.Duration
	delay    time.Duration
}

func main() {
	envFile := flag.String("env", ".env", "path to env file")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}

	cfg := config.Get()
	if err := cfg.Validate(); err != nil {
		log.Printf("ERROR: invalid config: %v", err)
		os.Exit(1)
	}

	lg := logger.New(cfg.LogLevel)

	if err := run(cfg, lg); err != nil {
		lg.Fatalf("service stopped: %v", err)
	}
}

func run(cfg config.Config, lg *logrus.Logger) error {
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}

	var (
		client        = fetch.New(cfg.HTTPTimeout)
		seriesCache   = cache.NewSeriesCache()
		newsStorage   = storage.NewNewsStorage(db)
		sourceStorage = storage.NewSourceStorage(db)
		rateStorage   = storage.NewRateStorage(db)

		feeds = fetcher.New(
			newsStorage,
			sourceStorage,
			client,
			cfg.FilterKeywords,
			cfg.NewsRetention,
			cfg.SummarySentences,
			lg,
		)
		updater = rates.NewUpdater(
			rateStorage,
			seriesCache,
			rates.NewChain(rates.FiatSymbols,
				rates.NewOpenExchangeRates(client, cfg.OpenExchangeRatesURL, cfg.OpenExchangeRatesAppID),
				rates.NewCBRDaily(client, cfg.CBRDailyURL),
				rates.NewFixed(rates.DefaultFiat),
			),
			rates.NewChain(rates.CryptoSymbols,
				rates.NewCoinGecko(client, cfg.CoinGeckoURL),
				rates.NewCryptoCompare(client, cfg.CryptoCompareURL),
				rates.NewFixed(rates.DefaultCrypto),
			),
			cfg.HistoryRetention,
			lg,
		)
		series = history.NewService(
			rateStorage,
			seriesCache,
			history.NewCBRHistory(client, cfg.CBRHistoryURL),
			append(append([]string{}, rates.FiatSymbols...), rates.CryptoSymbols...),
			lg,
		)
	)

	sched := scheduler.New(lg, time.UTC)

	if err := sched.Register(scheduler.JobFeeds, feeds.Fetch); err != nil {
		return err
	}
	if err := sched.Register(scheduler.JobRates, func(ctx context.Context) error {
		return updater.Run(ctx, rates.Scheduled)
	}); err != nil {
		return err
	}

	jobs := []jobPlan{
		{kind: scheduler.JobFeeds, interval: cfg.FetchInterval, delay: cfg.FeedStartupDelay},
		{kind: scheduler.JobRates, interval: cfg.RatesInterval},
	}

	if cfg.TelegramBotToken != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("failed to create bot api: %w", err)
		}

		n := notifier.New(
			newsStorage,
			botAPI,
			client,
			2*cfg.FetchInterval,
			cfg.TelegramChannel,
			cfg.SummarySentences,
			lg,
		)

		if err := sched.Register(scheduler.JobNotify, n.SelectAndSendArticle); err != nil {
			return err
		}

		jobs = append(jobs, jobPlan{kind: scheduler.JobNotify, interval: cfg.NotificationInterval, delay: -1})
	} else {
		lg.Info("telegram token is not set, notifier disabled")
	}

	for _, j := range jobs {
		if err := sched.Schedule(j.kind, j.interval); err != nil {
			return err
		}

		if j.delay < 0 {
			continue
		}

		if err := sched.ScheduleOnce(j.kind, j.delay); err != nil {
			return err
		}
	}

	sched.Start()
	defer sched.Stop()

	router := api.SetupRouter(
		handlers.NewJobsHandler(sched, feeds, updater, lg),
		handlers.NewRatesHandler(rateStorage, series, lg),
		lg,
		cfg.GinMode,
	)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Errorf("failed to shutdown http server: %v", err)
		}
	}()

	lg.Infof("listening on %s", cfg.HTTPAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	lg.Info("service has stopped")

	return nil
}
