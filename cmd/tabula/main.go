package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/core-coin/tabula/internal/challenge"
	"github.com/core-coin/tabula/internal/config"
	"github.com/core-coin/tabula/internal/gateway"
	"github.com/core-coin/tabula/internal/http_api"
	"github.com/core-coin/tabula/internal/ledger"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/internal/notificator"
	"github.com/core-coin/tabula/internal/repository"
	"github.com/core-coin/tabula/internal/retarget"
	"github.com/core-coin/tabula/internal/session"
	"github.com/core-coin/tabula/internal/tallycache"
	"github.com/core-coin/tabula/internal/verifier"
	"github.com/core-coin/tabula/pkg/logger"
)

const version = "1.0.0"

func main() {
	app := &cli.App{
		Name:  "tabula",
		Usage: "Tabula is a payment-gated remuneration ledger service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host (empty selects the in-memory store)"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.StringFlag{Name: "base-uri", Aliases: []string{"b"}, Usage: "Public base URI used in mailed links"},
			&cli.StringFlag{Name: "recovery-service-url", Aliases: []string{"r"}, Usage: "Signature recovery service URL"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("base-uri") {
		cfg.BaseURI = c.String("base-uri")
	}
	if c.IsSet("recovery-service-url") {
		cfg.RecoveryServiceURL = c.String("recovery-service-url")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize ledger store
	var db models.LedgerStore
	if cfg.PostgresHost != "" {
		db, err = repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, cfg.SelectMaxRows, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}
	} else {
		db = repository.NewMemoryDB(cfg.SelectMaxRows, log)
	}

	// Initialize collaborators
	recoverer := verifier.NewRemoteVerifier(log, cfg.RecoveryServiceURL)
	loopback := challenge.NewLoopbackChecker(log, recoverer, cfg.Salt)
	authToken := challenge.NewAuthTokenChecker(log, recoverer)
	gw := gateway.NewClient(log, cfg.GatewayAPIBase, cfg.GatewayOAuthTokenURL, cfg.GatewaySecretKey, cfg.GatewayCurrency, int64(cfg.GatewayMinAmountCents))
	tallyGate := tallycache.NewGate(cfg.TallyCacheTTL, log)

	emailNotif := notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, cfg.BaseURI)
	var telegramNotif *notificator.TelegramNotificator
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		telegramNotif, err = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn("Operator alerts disabled, telegram bot failed to start: ", err)
		}
	}
	notif := notificator.NewNotificator(log, telegramNotif, emailNotif)

	sessions := session.NewStore(cfg.RetargetTTL, log)
	orchestrator := retarget.NewOrchestrator(log, sessions, notif, cfg.RetargetTTL)

	// Create Tabula instance
	tabulaApp := ledger.NewTabula(log, db, orchestrator, gw, loopback, authToken, tallyGate, recoverer, cfg.Salt, int64(cfg.RetargetFeeCents), version)

	apiServer := http_api.NewHTTPServer(tabulaApp, cfg.APIPort, log)
	go apiServer.Start()

	// Wait for termination and clean up
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := apiServer.Shutdown(); err != nil {
		log.Error("Failed to shut down API server: ", err)
	}
	if err := db.Close(); err != nil {
		log.Error("Failed to close ledger store: ", err)
	}
	return nil
}
