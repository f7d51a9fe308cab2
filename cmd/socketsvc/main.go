package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/strcr/nfc-meals/configs"
	"github.com/strcr/nfc-meals/internal/comm"
	"github.com/strcr/nfc-meals/internal/nats"

	"github.com/strcr/nfc-meals/internal/socketsvc/broker"
	"github.com/strcr/nfc-meals/internal/socketsvc/routes"
	"github.com/strcr/nfc-meals/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

func init() {
	config.Init(SERVICE_NAME)
}

func main() {
	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		log.Fatal("API_KEY is required")
	}
	instanceId := config.CreateUniqueInstance(SERVICE_NAME)

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME+"-"+instanceId, os.Getenv("NATS_URL"), os.Getenv("NATS_TOKEN"))
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		origins = "http://localhost:5173"
	}
	c := config.CORS(strings.Split(origins, ","))

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit, err := strconv.Atoi(os.Getenv("RATE_LIMIT"))
	if err != nil || rateLimit <= 0 {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Initialize websocket handler
	s := ws.NewWs()

	port := os.Getenv("SOCKET_SERVICE_PORT")
	routes.SetRoutes(r, s, apiKey, port)

	// broker delivers scan service replies to sockets
	b := broker.NewBroker(n.Conn, s.Send, s.Broadcast)
	s.Broker = b

	sub, err := b.Subscribe(comm.TopicEventsService)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", comm.TopicEventsService, err)
	}

	// Create server with timeout settings
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
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

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
		return
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
