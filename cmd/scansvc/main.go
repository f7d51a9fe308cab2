package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/nats-io/nats.go"

	config "github.com/strcr/nfc-meals/configs"
	"github.com/strcr/nfc-meals/internal/alert"
	"github.com/strcr/nfc-meals/internal/comm"
	natsconn "github.com/strcr/nfc-meals/internal/nats"
	"github.com/strcr/nfc-meals/internal/scansvc/broker"
	"github.com/strcr/nfc-meals/internal/scansvc/cache"
	scanconfig "github.com/strcr/nfc-meals/internal/scansvc/config"
	"github.com/strcr/nfc-meals/internal/scansvc/db"
	"github.com/strcr/nfc-meals/internal/scansvc/handlers"
	"github.com/strcr/nfc-meals/internal/scansvc/service"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "scan"

func init() {
	config.Init(SERVICE_NAME)
}

func main() {
	cfg, err := scanconfig.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	instanceId := config.CreateUniqueInstance(SERVICE_NAME)

	// storage
	storage, err := db.Open(context.Background(), cfg.DBDriver, cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.DBDriver, err)
	}
	defer storage.Close()

	if err := storage.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to migrate %s storage: %v", cfg.DBDriver, err)
	}
	log.Printf("%s storage ready", cfg.DBDriver)

	eventService := service.NewEventService(storage.Repos.Events)
	scanService := service.NewScanService(storage.Repos, eventService, cfg.Location)
	provisionService := service.NewProvisionService(storage.Repos)

	if cfg.RedisUrl != "" {
		rdb, err := cache.Connect(context.Background(), cfg.RedisUrl)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		eventService.SetCache(cache.NewRedisFeedCache(rdb, cache.DefaultTTL))
		log.Printf("redis feed cache enabled")
	}

	if cfg.TelegramToken != "" {
		notifier, err := alert.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatIDs)
		if err != nil {
			log.Errorf("Failed to initialize Telegram notifier: %v", err)
		} else {
			scanService.SetAlerter(notifier)
			log.Infof("Telegram notifier initialized with %d chat IDs", len(cfg.TelegramChatIDs))
		}
	}

	// live feed over NATS is optional; scanning works without it
	var sub *nats.Subscription
	if cfg.NatsUrl != "" {
		n, err := natsconn.Connect(SERVICE_NAME+"-"+instanceId, cfg.NatsUrl, cfg.NatsToken)
		if err != nil {
			log.Fatalf("Error: unable to connect to NATS server %v", err)
		}
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)

		b := broker.NewBroker(n.Conn, eventService)
		eventService.SetNotifier(b)

		sub, err = b.SubscribeSocketService(comm.TopicScanService)
		if err != nil {
			log.Fatalf("Error: unable to subscribe to %s %v", comm.TopicScanService, err)
		}
	} else {
		log.Warn("NATS_URL not set, live feed disabled")
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.Origins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(scanService, eventService, provisionService, cfg.APIKey, cfg.StaticDir, cfg.Port)
	h.InitAuth(cfg.AdminJWTSecret)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if sub != nil {
		sub.Unsubscribe()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
		return
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
