package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/library/internal/infra/config"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/logging"
	"github.com/mkrupp/library/internal/infra/transport/http"
	"github.com/mkrupp/library/internal/repo/book"
	"github.com/mkrupp/library/internal/repo/loan"
	"github.com/mkrupp/library/internal/repo/user"
	"github.com/mkrupp/library/internal/svc/authsvc/authclient"
	"github.com/mkrupp/library/internal/svc/borrowsvc"
)

const (
	appName = "library"
	svcName = "borrowsvc"
)

type Config struct {
	config.EnvConfig

	Log        logging.LoggerConfig          `envPrefix:"LOG_"`
	HTTP       borrowsvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	AuthClient authclient.HTTPClientConfig   `envPrefix:""`
	DB         database.Config               `envPrefix:"DB_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.borrowsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	borrowSvc := borrowsvc.NewBorrowService(
		db,
		book.SQLBookRepositoryFactory,
		loan.SQLLoanRepositoryFactory,
		user.SQLUserRepositoryFactory,
	)

	authClient := authclient.NewHTTPClient(cfg.AuthClient, nil)
	httpTransport := borrowsvc.NewHTTPTransport(borrowSvc, authClient, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
