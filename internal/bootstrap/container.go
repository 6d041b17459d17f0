package bootstrap

import (
	"context"
	"log"
	"strconv"

	"buddyboard-be/internal/config"
	"buddyboard-be/internal/controller"
	"buddyboard-be/internal/handler"
	"buddyboard-be/internal/pkg/logger"
	"buddyboard-be/internal/repository/memory"
	"buddyboard-be/internal/repository/unitofwork"
	"buddyboard-be/internal/service"
	"buddyboard-be/internal/websocket"
	"buddyboard-be/pkg/discovery"

	pktNats "buddyboard-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	NoteController controller.INoteController

	// WebSockets
	BoardHandler *handler.BoardHandler
	WebSocketHub *websocket.Hub

	// Background Services (nil when NATS is not configured)
	NoteEventService *service.NoteEventService

	Registry *prometheus.Registry
	Logger   logger.ILogger

	cfg        *config.Config
	natsPub    *pktNats.Publisher
	natsSub    *pktNats.Subscriber
	rdb        *redis.Client
	pubSub     *gochannel.GoChannel
	advertiser *discovery.Advertiser
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	documentCache := memory.NewDocumentCache(cfg.Realtime.DocumentCacheTTL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Container{
		Registry: registry,
		Logger:   sysLogger,
		cfg:      cfg,
	}

	// 2. Infrastructure
	// NATS
	var eventPublisher service.EventPublisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			c.natsPub = natsPub
			eventPublisher = natsPub
		}
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			c.natsSub = natsSub
		}
	} else {
		log.Printf("[INFO] NATS_URL not set, note events are disabled")
	}

	// WebSocket Hub
	hubLogger := logger.NewIsolatedLogger(cfg.App.HubLogFilePath)
	relay := c.newRelay(hubLogger)
	wsHub := websocket.NewHub(relay, hubLogger, websocket.NewMetrics(registry), websocket.WithLimits(websocket.Limits{
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		SendBuffer:     cfg.Realtime.SendBuffer,
		WriteWait:      cfg.Realtime.WriteWait,
		PongWait:       cfg.Realtime.PongWait,
	}))

	// 3. Services
	noteService := service.NewNoteService(uowFactory, documentCache, eventPublisher, wsHub.InstanceID(), sysLogger)
	if c.natsSub != nil {
		c.NoteEventService = service.NewNoteEventService(c.natsSub, documentCache, wsHub.InstanceID(), sysLogger)
	}

	// 4. Controllers
	c.NoteController = controller.NewNoteController(noteService, cfg.App.JWTSecret)
	c.BoardHandler = handler.NewBoardHandler(wsHub, cfg.App.JWTSecret, hubLogger)
	c.WebSocketHub = wsHub

	return c
}

// newRelay picks how the hub reaches other instances. Redis is preferred;
// without it the hub relays in process only.
func (c *Container) newRelay(log logger.ILogger) websocket.Relay {
	if c.cfg.App.Relay == websocket.RelayRedis && c.cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(c.cfg.App.RedisURL)
		if err != nil {
			log.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{
				Addr: c.cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Warn("Bootstrap", "Failed to connect to Redis, relaying in process", map[string]interface{}{"error": err.Error()})
			_ = rdb.Close()
		} else {
			c.rdb = rdb
			return websocket.NewRedisRelay(rdb, log)
		}
	}

	c.pubSub = gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	return websocket.NewChannelRelay(c.pubSub, log)
}

// Start runs the background parts of the container until ctx is done.
func (c *Container) Start(ctx context.Context) {
	go c.WebSocketHub.Run(ctx)

	if c.NoteEventService != nil {
		if err := c.NoteEventService.Start(ctx); err != nil {
			log.Printf("[WARN] Note events disabled: %v", err)
		}
	}

	if c.cfg.App.MDNSEnabled {
		port, err := strconv.Atoi(c.cfg.App.Port)
		if err != nil {
			log.Printf("[WARN] mDNS disabled, APP_PORT %q is not a number", c.cfg.App.Port)
			return
		}
		adv, err := discovery.Advertise(c.cfg.App.InstanceName, "", port, nil, []string{"path=/api/board/v1/ws"})
		if err != nil {
			log.Printf("[WARN] mDNS advertise failed: %v", err)
			return
		}
		c.advertiser = adv
		log.Printf("[INFO] Advertising %s on port %d via mDNS", c.cfg.App.InstanceName, port)
	}
}

// Close releases connections opened by NewContainer.
func (c *Container) Close() {
	if c.advertiser != nil {
		_ = c.advertiser.Close()
	}
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.pubSub != nil {
		_ = c.pubSub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.Logger.Sync()
}
