package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/evhub/conference-ticketing/internal/config"
	"github.com/evhub/conference-ticketing/internal/credential"
	"github.com/evhub/conference-ticketing/internal/crm"
	"github.com/evhub/conference-ticketing/internal/database"
	"github.com/evhub/conference-ticketing/internal/handler"
	"github.com/evhub/conference-ticketing/internal/payment"
	"github.com/evhub/conference-ticketing/internal/queue"
	"github.com/evhub/conference-ticketing/internal/repository"
	"github.com/evhub/conference-ticketing/internal/router"
	"github.com/evhub/conference-ticketing/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient()

	ticketRepo := repository.NewTicketRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	operatorRepo := repository.NewOperatorRepo(db)
	eventRepo := repository.NewCheckInEventRepo(db)

	codec := credential.NewCodec(cfg.TicketSecret, cfg.CredentialIssuer)
	issuer := service.NewTicketIssuer(ticketRepo, codec, queue.PublishTicketIssued, cfg.TicketPrefix)
	engine := service.NewCheckInEngine(ticketRepo, codec)

	provider := payment.NewClient(cfg.SumUpAPIURL, cfg.SumUpAPIKey, cfg.SumUpMerchant)

	var crmClient service.ContactUpserter
	if oc := crm.NewClient(cfg.OdooURL, cfg.OdooDatabase, cfg.OdooAPIKey); oc.Enabled() {
		crmClient = oc
	} else {
		log.Println("[Odoo] not configured, CRM sync disabled")
	}
	reconciler := service.NewPaymentReconciler(paymentRepo, orderRepo, provider, issuer, crmClient)

	go func() {
		if err := queue.StartDeliveryConsumer(ticketRepo); err != nil {
			log.Printf("[Queue] delivery consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, operatorRepo),
		Checkout: handler.NewCheckoutHandler(orderRepo, paymentRepo, provider, cfg.TicketPrefix),
		Payment:  handler.NewPaymentHandler(reconciler),
		CheckIn:  handler.NewCheckInHandler(engine),
		Ticket:   handler.NewTicketHandler(ticketRepo, orderRepo, eventRepo, issuer),
		Stats:    handler.NewStatsHandler(ticketRepo, rdb),
	}, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
