package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	config "github.com/strcr/nfc-meals/configs"
	"github.com/strcr/nfc-meals/internal/auditsvc/archive"
	"github.com/strcr/nfc-meals/internal/comm"
	"github.com/strcr/nfc-meals/internal/db"
	"github.com/strcr/nfc-meals/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "audit"

func init() {
	config.Init(SERVICE_NAME)
}

func main() {
	instanceId := config.CreateUniqueInstance(SERVICE_NAME)

	retentionDays := 90
	if v := os.Getenv("AUDIT_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			log.Fatalf("Invalid AUDIT_RETENTION_DAYS value: %q", v)
		}
		retentionDays = days
	}

	mongoDB, err := db.ConnectToDB(context.Background(), os.Getenv("MONGODB_URI"))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	log.Printf("mongo connection established successfully %s", mongoDB.Name())

	a := archive.New(mongoDB, time.Duration(retentionDays)*24*time.Hour, instanceId)
	if err := a.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("Failed to prepare archive: %v", err)
	}

	n, err := nats.Connect(SERVICE_NAME+"-"+instanceId, os.Getenv("NATS_URL"), os.Getenv("NATS_TOKEN"))
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	consumer := archive.NewConsumer(n.Conn, a)
	sub, err := consumer.QueueSubscribe(comm.TopicEventsService, SERVICE_NAME)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to queue %v", err)
	}
	log.Infof("%s service archiving %s for %d days", SERVICE_NAME, comm.TopicEventsService, retentionDays)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := sub.Drain(); err != nil {
		log.Errorf("unable to drain subscription: %v", err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
