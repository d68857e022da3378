package application

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"secret_deal/internal/config"
	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/service/negotiation"
	"secret_deal/internal/infrastructure/encryption"
	"secret_deal/internal/infrastructure/ledger"
	"secret_deal/internal/infrastructure/notifier"
	"secret_deal/internal/infrastructure/persistence"
	"secret_deal/internal/server"
	"secret_deal/internal/tasks"
	"secret_deal/internal/worker"
	"secret_deal/pkg/application/connectors"
	"secret_deal/pkg/application/modules"
	"secret_deal/pkg/contextx"
	"secret_deal/pkg/logx"
	"secret_deal/pkg/middlewarex"
)

var logger = contextx.LoggerFromContextOrDefault

func Run(ctx context.Context, log *slog.Logger, cancel context.CancelFunc) error {
	ctx = contextx.WithLogger(ctx, log)

	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	// 2. Ledger
	ledgerClient, err := ledger.New(ctx, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("ledger client: %w", err)
	}
	defer ledgerClient.Close()

	self := ledgerClient.Self()
	ctx = contextx.WithPartyID(ctx, contextx.PartyID(self.Hex()))
	log.Info("acting party", "address", self.Hex(), "deal-id", cfg.Ledger.DealID)

	// 3. Контекст шифрования. Ошибка инициализации не фатальна: адаптер
	// переинициализируется при первом сабмите после восстановления
	// релэера, до тех пор сабмиты отклоняются с NotReady.
	encryptor := encryption.NewAdapter(cfg.Relayer, ledgerClient.ContractAddress(), self)
	if err := encryptor.Init(ctx); err != nil {
		log.Error("encryption context init failed", "error", err)
	}

	// 4. Сервис переговоров + первичная полная загрузка состояния
	negotiationService := negotiation.NewService(ledgerClient, encryptor, cfg.Ledger.DealID, self)

	snap, err := negotiationService.Resync(ctx)
	if err != nil {
		return fmt.Errorf("initial resync: %w", err)
	}
	log.Info("deal state loaded",
		"parties", len(snap.Parties),
		"offers", len(snap.Offers),
		"all-revealed", snap.AllRevealed,
		"finalized", snap.Finalized,
	)

	// 5. Database
	pg := &connectors.Postgres{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}
	db := pg.Client(ctx)
	defer pg.Close(ctx)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	log.Info("database connection OK")

	agreementRepo := persistence.NewAgreementRepository(db)

	// 6. Redis + клиент очереди
	rd := &connectors.Redis{
		Username:       cfg.Redis.Username,
		Password:       cfg.Redis.Password,
		Address:        cfg.Redis.Address,
		DatabaseNumber: cfg.Redis.DatabaseNumber,
		PoolSize:       cfg.Redis.PoolSize,
	}
	redisClient := rd.Client(ctx)
	defer rd.Close(ctx)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DatabaseNumber,
	})
	defer asynqClient.Close()

	// 7. События + нотификатор
	eventsCh := make(chan entity.NegotiationEvent, 100)

	if cfg.Bot.Enabled() {
		alertBot, err := notifier.NewTelegramBot(cfg.Bot.Token, cfg.Bot.ChatID, redisClient)
		if err != nil {
			return fmt.Errorf("notifier bot: %w", err)
		}

		go func() {
			log.Info("notifier bot started listening")
			if err := alertBot.Run(ctx, eventsCh); err != nil {
				if ctx.Err() == nil {
					log.Error("notifier bot stopped", "error", err)
				}
			}
		}()
	} else {
		go drainEvents(ctx, eventsCh)
	}

	// 8. Наблюдатель леджера
	watcher := worker.NewLedgerWatcher(negotiationService, eventsCh, asynqClient, cfg.Sync.Interval)

	go func() {
		defer close(eventsCh)

		if err := watcher.Run(ctx); err != nil {
			if ctx.Err() == nil {
				log.Error("watcher died", "error", err)
				cancel()
			}
		}
	}()

	// 9. Servers
	g, ctx := errgroup.WithContext(ctx)

	modules.ProbeServer{
		Name:          cfg.App.Name,
		Version:       cfg.App.Version,
		ListenAddress: cfg.Server.ProbeListenAddress,
	}.Run(ctx, g)

	modules.MetricServer{
		ListenAddress: cfg.Server.MetricListenAddress,
	}.Run(ctx, g)

	modules.AsynqServer{
		RedisUsername: cfg.Redis.Username,
		RedisPassword: cfg.Redis.Password,
		RedisAddress:  cfg.Redis.Address,
		RedisDB:       cfg.Redis.DatabaseNumber,
	}.Run(ctx, g,
		modules.AsynqQueues{tasks.QueueDefault: 1},
		modules.AsynqHandler{
			Pattern: tasks.TypeAgreementArchive,
			Handle:  tasks.NewArchiveHandler(negotiationService, agreementRepo).ProcessTask,
		},
	)

	modules.HTTPServer{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}.Run(ctx, g, newHTTPServer(ctx, cfg.Server, negotiationService))

	if err := g.Wait(); err != nil {
		return fmt.Errorf("g.Wait: %w", err)
	}

	log.Info("application stopping...")
	return nil
}

func newHTTPServer(ctx context.Context, cfg config.Server, negotiationService *negotiation.Service) *http.Server {
	masker := logx.NewSensitiveDataMasker()

	router := chi.NewRouter()
	router.Use(
		middlewarex.TraceID,
		middlewarex.Logger,
		middlewarex.Recovery,
		middlewarex.RequestLogging(masker, cfg.LogFieldMaxLen),
		middlewarex.ResponseLogging(masker, cfg.LogFieldMaxLen),
	)

	server.NewServer(
		server.NewDealServer(negotiationService),
	).RegisterRoutes(router)

	//nolint:exhaustruct
	return &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

// drainEvents вычитывает события, когда бот не сконфигурирован,
// чтобы наблюдатель не блокировался на полном канале.
func drainEvents(ctx context.Context, events <-chan entity.NegotiationEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logger(ctx).Debug("negotiation event",
				"kind", event.Kind,
				"party", event.Party.Hex(),
				"version", event.Version,
			)
		}
	}
}
