package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/ai"
	"github.com/campaignify/xenocrm/internal/api"
	"github.com/campaignify/xenocrm/internal/api/handlers"
	"github.com/campaignify/xenocrm/internal/delivery"
	"github.com/campaignify/xenocrm/internal/personalize"
	"github.com/campaignify/xenocrm/internal/repository"
	"github.com/campaignify/xenocrm/internal/rules"
	"github.com/campaignify/xenocrm/internal/scheduler"
	"github.com/campaignify/xenocrm/internal/service"
	"github.com/campaignify/xenocrm/pkg/db"
)

type appConfig struct {
	Addr                string        `env:"HTTP_ADDR" envDefault:":8080"`
	DispatchConcurrency int           `env:"DISPATCH_CONCURRENCY" envDefault:"8"`
	DeliverySuccessRate float64       `env:"DELIVERY_SUCCESS_RATE" envDefault:"0.9"`
	DeliveryLatency     time.Duration `env:"DELIVERY_LATENCY" envDefault:"500ms"`
	RetryAttempts       int           `env:"STORE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay      time.Duration `env:"STORE_RETRY_BASE_DELAY" envDefault:"1s"`

	AI ai.Config
}

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	// db.LoadConfig also loads .env, so parse app config after it.
	dbCfg, err := db.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("load db config")
	}
	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		log.WithError(err).Fatal("load app config")
	}

	conn, err := db.Connect(dbCfg)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer conn.Close()

	customerRepo := repository.NewCustomerRepo(conn)
	orderRepo := repository.NewOrderRepo(conn)
	segmentRepo := repository.NewSegmentRepo(conn)
	campaignRepo := repository.NewCampaignRepo(conn)
	messageRepo := repository.NewMessageRepo(conn)

	retry := repository.NewRetryer(cfg.RetryAttempts, cfg.RetryBaseDelay, log)
	eval := rules.NewEvaluator(orderRepo.CountsByCustomerIDs)

	syncSvc := service.NewSyncService(customerRepo, orderRepo, segmentRepo, eval, retry, log)
	segmentSvc := service.NewSegmentService(segmentRepo, customerRepo, eval, retry, log)
	customerSvc := service.NewCustomerService(customerRepo, syncSvc, retry, log)
	orderSvc := service.NewOrderService(orderRepo, customerRepo, syncSvc, retry, log)

	channel := delivery.NewSimulatedChannel(cfg.DeliverySuccessRate, cfg.DeliveryLatency, nil)
	messageSvc := service.NewMessageService(messageRepo, customerRepo, channel, retry, log)

	var personalizer personalize.Personalizer = personalize.Template{}
	var translator handlers.RuleTranslator
	if cfg.AI.APIKey != "" {
		client := ai.NewClient(cfg.AI, log)
		personalizer = client
		translator = client
	}

	campaignSvc := service.NewCampaignService(campaignRepo, segmentSvc, messageSvc, personalizer, retry, cfg.DispatchConcurrency, log)

	sched := scheduler.New(campaignRepo, campaignSvc, log)
	sched.Start()
	defer sched.Stop()

	handler := api.NewRouter(api.Services{
		Customers:  customerSvc,
		Orders:     orderSvc,
		Segments:   segmentSvc,
		Campaigns:  campaignSvc,
		Messages:   messageSvc,
		Translator: translator,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("HTTP server shutdown")
		}
		close(idleConnsClosed)
	}()

	log.WithField("addr", cfg.Addr).Info("starting crm-service")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("listen")
	}

	<-idleConnsClosed
	log.Info("server stopped")
}
