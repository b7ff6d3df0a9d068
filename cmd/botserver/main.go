package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nifty-optionsbot/config"
	"nifty-optionsbot/internal/execution"
	"nifty-optionsbot/internal/gateway"
	"nifty-optionsbot/internal/indicator"
	"nifty-optionsbot/internal/logger"
	"nifty-optionsbot/internal/marketdata"
	"nifty-optionsbot/internal/markethours"
	"nifty-optionsbot/internal/metrics"
	"nifty-optionsbot/internal/model"
	"nifty-optionsbot/internal/notification"
	"nifty-optionsbot/internal/optionchain"
	"nifty-optionsbot/internal/pipeline"
	"nifty-optionsbot/internal/portfolio"
	redisstore "nifty-optionsbot/internal/store/redis"
	sqlitestore "nifty-optionsbot/internal/store/sqlite"
	"nifty-optionsbot/internal/strategy"
	smartconnect "nifty-optionsbot/pkg/smartconnect"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[botserver] starting...")

	if err := godotenv.Load(); err == nil {
		log.Println("[botserver] loaded .env")
	}
	cfg := config.Load()
	slogger := logger.Init("botserver", slog.LevelInfo)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context & signals ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite stores ----
	os.MkdirAll(filepath.Dir(cfg.BarsDBPath), 0o755)
	barStore, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.BarsDBPath})
	if err != nil {
		log.Fatalf("[botserver] sqlite init failed: %v", err)
	}
	defer barStore.Close()
	health.SetSQLiteOK(true)

	fillJournal, err := execution.NewFillJournal(cfg.FillsDBPath)
	if err != nil {
		log.Fatalf("[botserver] fill journal init failed: %v", err)
	}
	defer fillJournal.Close()

	signalHistory, err := sqlitestore.NewReader(cfg.BarsDBPath)
	if err != nil {
		log.Fatalf("[botserver] sqlite reader init failed: %v", err)
	}
	defer signalHistory.Close()

	// ---- Redis (optional; the bot runs degraded without it) ----
	var statePub model.StatePublisher
	var redisPub *redisstore.Publisher
	var redisReader *redisstore.Reader
	redisPub, err = redisstore.New(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[botserver] WARNING: redis init failed: %v (continuing without redis)", err)
		health.SetRedisConnected(false)
		redisPub = nil
	} else {
		health.SetRedisConnected(true)
		cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
		cb.OnStateChange = func(from, to redisstore.State) {
			log.Printf("[botserver] redis circuit breaker %s -> %s", from, to)
			prom.RedisCircuitBreakerState.Set(float64(to))
		}
		buffered := redisstore.NewBufferedPublisher(ctx, redisPub, cb, 10000)
		buffered.OnBuffer = func() { prom.RedisBufferedWrites.Inc() }
		statePub = buffered
		redisReader, err = redisstore.NewReader(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[botserver] redis reader init failed: %v", err)
			redisReader = nil
		}
	}

	if redisPub != nil {
		health.StartLivenessChecker(ctx, redisPub.Client(), barStore.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, barStore.DB(), 10*time.Second)
	}

	// ---- Portfolio & risk ----
	pf := portfolio.New()
	limits := portfolio.DefaultRiskLimits()
	limits.MaxDailyLoss = cfg.MaxDailyLoss
	limits.MaxOpenPositions = cfg.MaxOpenLegs
	risk := portfolio.NewRiskManager(limits, pf, cfg.InitialEquity, cfg.OrderQty)

	// ---- Broker session & option chain ----
	var sc *smartconnect.SmartConnect
	var chain *optionchain.Poller
	if !cfg.SimFeed {
		sc = smartconnect.New(smartconnect.Config{APIKey: cfg.AngelAPIKey})
		if _, err := sc.GenerateSession(cfg.AngelClientCode, cfg.AngelPassword, cfg.AngelTOTPSecret); err != nil {
			log.Fatalf("[botserver] login failed: %v", err)
		}
		log.Println("[botserver] Angel One session ready")

		chain = optionchain.NewPoller(sc, optionchain.Config{
			Name:           cfg.IndexName,
			Expiry:         cfg.OptionExpiry,
			CESymbol:       cfg.CESymbol,
			CEToken:        cfg.CEToken,
			PESymbol:       cfg.PESymbol,
			PEToken:        cfg.PEToken,
			GreeksInterval: cfg.GreeksPollInterval,
			PCRInterval:    cfg.PCRPollInterval,
			Spot: func() (int64, error) {
				return sc.LTP(cfg.IndexExchange, cfg.IndexSymbol, cfg.IndexToken)
			},
		})
		chain.OnFetch = func(d time.Duration) { prom.ChainFetchDur.Observe(d.Seconds()) }
		chain.OnFetchError = func() { prom.ChainFetchErrors.Inc() }
		go chain.Run(ctx)

		// Flip chain health once greeks are flowing.
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					g := chain.Greeks()
					health.SetChainOK(g != nil && !g.Stale(time.Now(), 2*cfg.GreeksPollInterval))
					if g != nil {
						prom.GreeksAge.Set(time.Since(g.FetchedAt).Seconds())
					}
					if pcr := chain.PCR(); pcr != nil && pcr.PCR != nil {
						prom.PCRValue.Set(*pcr.PCR)
					}
				}
			}
		}()
	}

	var optCtx model.OptionContext = noChain{}
	if chain != nil {
		optCtx = chain
	}

	// ---- Strategy & pipeline ----
	instrument := model.Instrument{
		Token:         cfg.IndexToken,
		Exchange:      cfg.IndexExchange,
		TradingSymbol: cfg.IndexSymbol,
		Name:          cfg.IndexName,
		LotSize:       cfg.LotSize,
		IsIndex:       true,
	}

	params := strategy.DefaultParams()
	params.IsIndex = true
	params.GreeksEnabled = cfg.GreeksEnabled
	params.RSIBullThreshold = cfg.RSIBullThreshold
	params.RSIBearThreshold = cfg.RSIBearThreshold
	params.VolumeRatioMin = cfg.VolumeRatioMin
	params.ATRPctMin = cfg.ATRPctMin
	params.ATRPctMax = cfg.ATRPctMax
	params.VWAPMinDistPct = cfg.VWAPMinDistPct
	params.DeltaMin = cfg.DeltaMin
	params.DeltaMax = cfg.DeltaMax
	params.PCRBullMax = cfg.PCRBullMax
	params.PCRBearMin = cfg.PCRBearMin
	params.ConfirmBars = cfg.ConfirmBars
	eval := strategy.NewEvaluator(params)
	engine := indicator.NewEngine(indicator.DefaultConfig())

	// ---- Dashboard ----
	hub := gateway.NewHub(512)
	if redisReader != nil {
		if st, err := redisReader.LatestState(ctx, cfg.IndexExchange, cfg.IndexToken); err == nil {
			hub.Prime(st)
		}
	}

	// ---- Notifications ----
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		backends = append(backends, notification.NewTelegramNotifier(token, os.Getenv("TELEGRAM_CHAT_ID")))
	}
	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		backends = append(backends, notification.NewWebhookNotifier(url))
	}
	notifier := notification.NewSignalNotifier(backends...)
	gate := strategy.NewGate(time.Duration(cfg.CooldownSec)*time.Second,
		&alertingRisk{risk: risk, notifier: notifier, onRejected: prom.RiskRejections.Inc})

	journal := &signalSink{
		store:    barStore,
		pub:      redisPub,
		notifier: notifier,
		exchange: cfg.IndexExchange,
		token:    cfg.IndexToken,
	}

	pipe := pipeline.New(pipeline.Options{
		Instrument: instrument,
		Engine:     engine,
		Evaluator:  eval,
		Gate:       gate,
		Options:    optCtx,
		Publisher: &statefanout{
			hub:     hub,
			redis:   statePub,
			onWrite: func(d time.Duration) { prom.RedisWriteDur.Observe(d.Seconds()) },
		},
		Journal: journal,

		OnEvaluation:   func(d time.Duration) { prom.EvaluationsTotal.Inc(); prom.EvaluationDur.Observe(d.Seconds()) },
		OnSignal:       func(kind model.SignalKind) { prom.SignalsTotal.WithLabelValues(string(kind)).Inc() },
		OnSuppressed:   func(verdict string) { prom.SuppressionsTotal.WithLabelValues(verdict).Inc() },
		OnMalformedBar: func() { prom.MalformedBars.Inc() },
	})

	gwSrv := gateway.NewServer(cfg.GatewayAddr, hub, pipe)
	gwSrv.Signals = signalHistory
	gwSrv.Portfolio = pf
	gwSrv.Risk = risk
	go func() {
		if err := gwSrv.Start(); err != nil {
			log.Printf("[botserver] gateway error: %v", err)
		}
	}()

	// ---- Execution ----
	resolver := &execution.ATMResolver{
		Opts:    optCtx,
		CEToken: cfg.CEToken,
		PEToken: cfg.PEToken,
		LotSize: int64(cfg.LotSize),
	}
	exec := execution.NewPaperExecutor(resolver, pf, risk, fillJournal, cfg.SlippageBps)
	go exec.Run(ctx, pipe.Signals())

	lossAlerted := false
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-exec.Results():
				if !ok {
					return
				}
				prom.OrdersTotal.WithLabelValues(res.Order.TransactionType, res.Status).Inc()
				realized := pf.RealizedPnL()
				prom.RealizedPnL.Set(float64(realized))
				prom.OpenPositions.Set(float64(len(pf.Positions())))
				if realized <= -cfg.MaxDailyLoss && !lossAlerted {
					lossAlerted = true
					notifier.NotifyDailyLossLimit(ctx, realized)
				}
			}
		}
	}()

	// ---- Bar pipeline ----
	tickCh := make(chan model.Tick, 10000)
	barCh := make(chan model.Bar, 1000)
	pipeBarCh := make(chan model.Bar, 1000)
	sqliteBarCh := make(chan model.Bar, 1000)

	builder := marketdata.New(time.Minute)
	go builder.Run(ctx, tickCh, barCh)

	// Fan closed bars out to the pipeline and SQLite off the hot path.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-barCh:
				if !ok {
					return
				}
				if !b.Forming {
					prom.BarsClosedTotal.Inc()
					prom.BarLag.Set(time.Since(b.TS.Add(time.Minute)).Seconds())
				}
				select {
				case pipeBarCh <- b:
				default:
				}
				if !b.Forming {
					select {
					case sqliteBarCh <- b:
					default:
					}
				}
			}
		}
	}()

	go barStore.Run(ctx, sqliteBarCh)
	go pipe.Run(ctx, pipeBarCh)

	// ---- Market state gauge & daily reset ----
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		lastOpen := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				open := markethours.IsMarketOpen(time.Now())
				health.SetMarketOpen(open)
				if open {
					prom.MarketState.Set(1)
				} else {
					prom.MarketState.Set(0)
				}
				if open && !lastOpen {
					risk.ResetDaily()
					log.Println("[botserver] market open, daily risk counters reset")
				}
				lastOpen = open
			}
		}
	}()

	// ---- Tick source ----
	if cfg.SimFeed {
		sim := &marketdata.SimFeed{
			Token:      cfg.IndexToken,
			Exchange:   cfg.IndexExchange,
			StartPrice: 2215000,
		}
		go sim.Start(ctx, countedTicks(ctx, tickCh, prom, health))
		log.Println("[botserver] SIM feed active (synthetic ticks, no broker session)")
	} else {
		go runLiveFeed(ctx, cfg, sc, countedTicks(ctx, tickCh, prom, health), prom, health)
	}

	slogger.Info("botserver ready",
		slog.String("dashboard", cfg.GatewayAddr),
		slog.String("metrics", cfg.MetricsAddr),
		slog.Bool("sim_feed", cfg.SimFeed),
		slog.String("instrument", instrument.Key()))
	log.Printf("[botserver] %s", markethours.StatusString(time.Now()))

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[botserver] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	gwSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	if redisPub != nil {
		redisPub.Close()
	}
	slogger.Info("botserver shutdown complete")
}

// runLiveFeed keeps the Angel One stream up during market hours: wait
// for open, refresh the session, stream until close, repeat.
func runLiveFeed(ctx context.Context, cfg *config.Config, sc *smartconnect.SmartConnect, tickCh chan<- model.Tick, prom *metrics.Metrics, health *metrics.HealthStatus) {
	for {
		now := time.Now()
		if !markethours.IsMarketOpen(now) {
			next := markethours.NextOpen(now)
			wait := markethours.WSConnectTime(next).Sub(now)
			if wait < 0 {
				wait = time.Second
			}
			log.Printf("[botserver] market closed, sleeping %v until %s",
				wait.Truncate(time.Second), next.In(markethours.IST).Format("Mon 15:04"))
			health.SetWSConnected(false)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		// Fresh session each trading day.
		if _, err := sc.GenerateSession(cfg.AngelClientCode, cfg.AngelPassword, cfg.AngelTOTPSecret); err != nil {
			log.Printf("[botserver] session refresh failed: %v, retrying in 30s", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(30 * time.Second):
			}
			continue
		}

		feed, err := marketdata.NewFeed(marketdata.FeedConfig{
			AuthToken:     sc.AccessToken(),
			APIKey:        cfg.AngelAPIKey,
			ClientCode:    cfg.AngelClientCode,
			FeedToken:     sc.FeedToken(),
			SubscribeMode: smartconnect.ModeQuote,
			TokenList: []smartconnect.TokenListEntry{
				{ExchangeType: smartconnect.ExchangeNSECM, Tokens: []string{cfg.IndexToken}},
			},
		})
		if err != nil {
			log.Printf("[botserver] feed init failed: %v, retrying in 30s", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(30 * time.Second):
			}
			continue
		}
		feed.OnTickDropped = func() { prom.RingBufOverflow.Inc() }
		feed.OnReconnect = func() { prom.WSReconnects.Inc() }

		closeTime := markethours.TodayClose(time.Now())
		wsCtx, wsCancel := context.WithDeadline(ctx, closeTime)
		health.SetWSConnected(true)
		log.Printf("[botserver] feed connected, streaming until %s",
			closeTime.In(markethours.IST).Format("15:04:05"))

		if err := feed.Start(wsCtx, tickCh); err != nil {
			log.Printf("[botserver] feed session ended: %v", err)
		}
		wsCancel()
		health.SetWSConnected(false)

		if ctx.Err() != nil {
			return
		}
	}
}

// countedTicks interposes a counting stage between the feed and the bar
// builder so tick metrics stay off the feed's ring drain loop.
func countedTicks(ctx context.Context, out chan<- model.Tick, prom *metrics.Metrics, health *metrics.HealthStatus) chan model.Tick {
	in := make(chan model.Tick, 10000)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-in:
				if !ok {
					return
				}
				prom.TicksTotal.Inc()
				health.SetLastTickTime(time.Now())
				select {
				case out <- t:
				default:
					prom.DroppedTicks.Inc()
				}
			}
		}
	}()
	return in
}

// alertingRisk wraps the risk manager so blocked signals raise a
// notification alongside the gate's suppression. Identical block
// reasons are deduped for 10 minutes to keep alert channels quiet
// while a limit stays breached.
type alertingRisk struct {
	risk       *portfolio.RiskManager
	notifier   *notification.SignalNotifier
	onRejected func()

	mu         sync.Mutex
	lastReason string
	lastSent   time.Time
}

func (a *alertingRisk) CanTrade(ctx context.Context, sig model.Signal) (bool, string, error) {
	allowed, reason, err := a.risk.CanTrade(ctx, sig)
	if err != nil || allowed {
		return allowed, reason, err
	}
	if a.onRejected != nil {
		a.onRejected()
	}
	a.mu.Lock()
	repeat := reason == a.lastReason && time.Since(a.lastSent) < 10*time.Minute
	if !repeat {
		a.lastReason = reason
		a.lastSent = time.Now()
	}
	a.mu.Unlock()
	if !repeat {
		a.notifier.NotifyRiskBlock(ctx, sig, reason)
	}
	return allowed, reason, err
}

// noChain is the option context used when no broker session exists; the
// greeks and PCR filters stay disabled.
type noChain struct{}

func (noChain) Greeks() *model.GreeksSnapshot { return nil }
func (noChain) PCR() *model.PCRContext        { return nil }

// statefanout pushes each snapshot to the dashboard hub and, when
// available, Redis. Hub delivery never fails; the Redis error is
// surfaced so the pipeline can count it.
type statefanout struct {
	hub     *gateway.Hub
	redis   model.StatePublisher
	onWrite func(time.Duration)
}

func (f *statefanout) PublishState(ctx context.Context, st model.StateSnapshot) error {
	f.hub.PublishState(ctx, st)
	if f.redis != nil {
		start := time.Now()
		err := f.redis.PublishState(ctx, st)
		if f.onWrite != nil {
			f.onWrite(time.Since(start))
		}
		return err
	}
	return nil
}

// signalSink journals admitted signals to SQLite, mirrors them to Redis
// and notifies configured channels.
type signalSink struct {
	store    *sqlitestore.Writer
	pub      *redisstore.Publisher
	notifier *notification.SignalNotifier
	exchange string
	token    string
}

func (s *signalSink) RecordSignal(ctx context.Context, sig model.Signal, rec model.ReasoningRecord) error {
	if s.pub != nil {
		if err := s.pub.PublishSignal(ctx, s.exchange, s.token, sig, rec); err != nil {
			log.Printf("[botserver] redis signal publish failed: %v", err)
		}
	}
	s.notifier.NotifySignal(ctx, sig, rec)
	return s.store.RecordSignal(ctx, sig, rec)
}

func (s *signalSink) Close() error { return nil }
