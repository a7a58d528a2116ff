// Command etod runs a single equity-token offering behind an HTTP API.
//
// Configuration is read from <datadir>/config, overlaid with ETO_* variables
// from a .env file in the working directory and then from the process
// environment.
//
// The offering state lives in <datadir>/eto.db. Token balances, identity
// status and locked legacy balances live in <datadir>/ledger.db, so a
// restart resumes with the funds that back the offering. When an operator
// address is configured it may fund accounts, maintain the identity
// registry and end the claim window early over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/equityledger/libeto-go/config"
	"github.com/equityledger/libeto-go/docs"
	"github.com/equityledger/libeto-go/httpapi"
	"github.com/equityledger/libeto-go/identity"
	"github.com/equityledger/libeto-go/legacy"
	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/terms"
	"github.com/equityledger/libeto-go/token"
)

const (
	tickInterval     = 30 * time.Second
	rateInterval     = time.Minute
	shutdownDeadline = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "etod:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, []string, error) {
	env := map[string]string{}
	if _, err := os.Stat(".env"); err == nil {
		if env, err = config.LoadEnvFile(".env"); err != nil {
			return config.Config{}, nil, err
		}
	}
	for k, v := range config.Environ() {
		env[k] = v
	}

	dataDir := config.DefaultDataDir()
	if v, ok := env["ETO_DATADIR"]; ok && v != "" {
		dataDir = v
	}
	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return cfg, nil, err
	}
	cfg.DataDir = dataDir
	applied := config.ApplyEnv(&cfg, env)

	if err := config.ValidateConfig(cfg); err != nil {
		return cfg, nil, err
	}
	for key, v := range map[string]string{
		"company":    cfg.Company,
		"nominee":    cfg.Nominee,
		"platform":   cfg.PlatformWallet,
		"companykey": cfg.CompanyKey,
		"nomineekey": cfg.NomineeKey,
	} {
		if v == "" {
			return cfg, nil, fmt.Errorf("%s must be configured", key)
		}
	}
	return cfg, applied, nil
}

func run() error {
	cfg, applied, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logrus.NewEntry(logger)
	if len(applied) > 0 {
		log.WithField("vars", applied).Info("environment overrides applied")
	}

	t, err := terms.Load(cfg.TermsPath())
	if err != nil {
		return err
	}
	archive, err := docs.NewArchive(cfg.DocumentsPath())
	if err != nil {
		return err
	}
	termsDoc, err := os.ReadFile(cfg.TermsPath())
	if err != nil {
		return err
	}
	termsURL, err := archive.Put(termsDoc)
	if err != nil {
		return err
	}
	companyKey, err := config.ParsePublicKey(cfg.CompanyKey)
	if err != nil {
		return err
	}
	nomineeKey, err := config.ParsePublicKey(cfg.NomineeKey)
	if err != nil {
		return err
	}

	store, err := offering.OpenBoltStore(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()
	company := common.HexToAddress(cfg.Company)
	// The commitment account is the first contract the company would deploy.
	commitmentAddr := crypto.CreateAddress(company, 0)

	ledgerDB, err := bbolt.Open(cfg.LedgerPath(), 0600, nil)
	if err != nil {
		return fmt.Errorf("open ledger db: %w", err)
	}
	defer ledgerDB.Close()

	op := httpapi.Operator{
		Tokens:  make(map[rates.Currency]token.Token),
		Wallets: make(map[rates.Currency]*legacy.Wallet),
	}

	var gate identity.Gate
	if cfg.KYCZone != "" {
		g, err := identity.NewDNSGate(cfg.KYCZone, identity.NewDNSSECResolver(cfg.DNSServer), log)
		if err != nil {
			return err
		}
		gate = g
	} else {
		reg, err := identity.OpenRegistry(ledgerDB)
		if err != nil {
			return err
		}
		gate = reg
		op.Registry = reg
	}

	var provider rates.Provider = rates.NewFixedProvider()
	if cfg.RateFeed != "" {
		feed := rates.NewFeed(rates.FeedConfig{URL: cfg.RateFeed}, clk, log)
		go func() {
			if err := feed.Run(ctx, rateInterval); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("rate feed stopped")
			}
		}()
		provider = feed
	}

	roles := offering.NewRoles()
	roles.Grant(offering.RoleWhitelistAdmin, company)
	if cfg.Operator != "" {
		roles.Grant(offering.RoleAdmin, common.HexToAddress(cfg.Operator))
		op.Access = roles
	}

	ledgers := make(map[string]*token.Ledger)
	for _, symbol := range []string{"EQT", "EUR-T", "ETH-T"} {
		j, err := token.NewBoltJournal(ledgerDB, symbol)
		if err != nil {
			return err
		}
		if ledgers[symbol], err = token.OpenLedger(symbol, clk, j); err != nil {
			return err
		}
	}
	euro, ether := ledgers["EUR-T"], ledgers["ETH-T"]
	op.Tokens[rates.EUR] = euro
	op.Tokens[rates.ETH] = ether

	u := offering.NewServices(offering.ServicesConfig{
		Identity:       gate,
		Rates:          provider,
		Access:         roles,
		EquityToken:    ledgers["EQT"],
		EuroToken:      euro,
		EtherToken:     ether,
		Company:        company,
		Nominee:        common.HexToAddress(cfg.Nominee),
		PlatformWallet: common.HexToAddress(cfg.PlatformWallet),
		CompanyKey:     companyKey,
		NomineeKey:     nomineeKey,
	})

	c, err := offering.New(offering.Config{
		Address:  commitmentAddr,
		Terms:    t,
		Universe: u,
		Store:    store,
		Clock:    clk,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	for i, lw := range []struct {
		cur rates.Currency
		tok token.Token
	}{{rates.ETH, ether}, {rates.EUR, euro}} {
		w, err := legacy.OpenWallet(ledgerDB, crypto.CreateAddress(company, uint64(i+1)), lw.cur, lw.tok, log)
		if err != nil {
			return err
		}
		w.SetTarget(c)
		u.SetLegacyWallet(lw.cur, w)
		op.Wallets[lw.cur] = w
	}

	go func() {
		ticker := clk.Ticker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Tick(); err != nil {
					log.WithError(err).Error("phase tick failed")
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.New(c, log, httpapi.WithArchive(archive), httpapi.WithOperator(op)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.WithFields(logrus.Fields{
		"listen":     cfg.ListenAddr,
		"network":    cfg.Network,
		"commitment": commitmentAddr.Hex(),
		"phase":      c.CurrentPhase().String(),
		"terms":      termsURL,
		"operator":   cfg.Operator,
	}).Info("etod started")

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
