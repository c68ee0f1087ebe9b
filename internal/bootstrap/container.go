package bootstrap

import (
	"context"
	"log"
	"time"

	"membership-ledger-be/internal/config"
	"membership-ledger-be/internal/controller"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/internal/pkg/serverutils"
	"membership-ledger-be/internal/repository/cache"
	"membership-ledger-be/internal/repository/memory"
	"membership-ledger-be/internal/repository/unitofwork"
	"membership-ledger-be/internal/service"

	pktNats "membership-ledger-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	MembershipController     controller.IMembershipController
	BillingWebhookController controller.IBillingWebhookController
	JwtMiddleware            fiber.Handler

	// Background Services (Exposed for main.go to run)
	ConsumerService      service.IConsumerService
	CancellationListener service.IAppointmentCancellationListener

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)

	c := &Container{Logger: sysLogger}
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	// NATS
	var forwarder service.IEventForwarder
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		forwarder = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}

	var eventSubscriber service.IEventSubscriber
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	} else {
		eventSubscriber = natsSub
		c.closers = append(c.closers, natsSub.Close)
	}

	// Redis
	var statusCache cache.AllowanceStatusCache = cache.NopAllowanceStatusCache{}
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Allowance status is not cached", err)
		_ = rdb.Close()
	} else {
		statusCache = cache.NewRedisAllowanceStatusCache(rdb, cfg.Ledger.StatusCacheTTL, sysLogger)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}
	cancel()

	// In-memory plan catalog cache
	planCache := memory.NewPlanCache(10 * time.Minute)

	// 4. Services
	ledgerPublisher := service.NewLedgerEventPublisher(pubSub, cfg.Ledger.EventTopic, sysLogger)
	planCatalog := service.NewPlanCatalogService(uowFactory, planCache, sysLogger)
	evaluator := service.NewCoverageEvaluator(uowFactory)
	ledger := service.NewAllowanceLedgerService(uowFactory, planCatalog, ledgerPublisher, statusCache, cfg.Ledger, sysLogger)
	lifecycle := service.NewSubscriptionLifecycleService(uowFactory, planCatalog, ledgerPublisher, cfg.Ledger, sysLogger)
	webhookService := service.NewBillingWebhookService(lifecycle, cfg.Billing.StripeWebhookSecret, cfg.Ledger.MaxRetries, sysLogger)

	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Ledger.EventTopic, forwarder, statusCache, sysLogger)
	if eventSubscriber != nil {
		c.CancellationListener = service.NewAppointmentCancellationListener(eventSubscriber, ledger, cfg.Ledger.MaxRetries, sysLogger)
	}

	// 5. Controllers
	c.MembershipController = controller.NewMembershipController(planCatalog, evaluator, ledger, cfg.Ledger)
	c.BillingWebhookController = controller.NewBillingWebhookController(webhookService)
	c.JwtMiddleware = serverutils.NewJwtMiddleware(cfg.Auth.JwtSecret)

	return c
}

// Close releases broker and cache connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
