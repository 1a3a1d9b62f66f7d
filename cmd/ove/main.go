package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/optionvault/ove/internal/config"
	"github.com/optionvault/ove/internal/exchange"
	"github.com/optionvault/ove/internal/lifecycle"
	"github.com/optionvault/ove/internal/logger"
	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/signer"
	"github.com/optionvault/ove/internal/state"
	"github.com/optionvault/ove/internal/web"
	"github.com/optionvault/ove/internal/web3"
)

const DEPOSIT_INTERVAL = 5 * time.Minute

// main is the entry point for the option vault engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Str("vault", cfg.VaultName).Msg("Option vault engine starting...")

	// Telemetry database is optional; the engine recovers its stage from
	// exchange positions, never from the database.
	var recorder lifecycle.Recorder
	if dbCfg, enabled := state.LoadDBConfigFromEnv(); enabled {
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		recorder = state.NewRecorder()
	} else {
		log.Info().Msg("DB_HOST not set, telemetry persistence disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- 2. Exchange Session ---
	auth, err := signer.NewAuthorizer(cfg.Signing)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize order authorizer")
	}

	ws, err := exchange.Dial(ctx, cfg.Endpoints.ExchangeWS, auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to exchange")
	}
	defer ws.Close()
	if err := ws.Login(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate exchange session")
	}

	// --- 3. Market Data Sync ---
	marketState := market.NewState()
	baseInstruments := []string{
		cfg.Vault.SpotName + "-" + cfg.Vault.CashName,
	}
	go market.RunTickerSync(ctx, ws, marketState, baseInstruments, market.Interval1000Ms)
	go market.RunPositionSync(ctx, ws, marketState, cfg.SubaccountID)

	// --- 4. Vault Executor ---
	executor, err := lifecycle.NewExecutor(lifecycle.ExecutorConfig{
		VaultName:    cfg.VaultName,
		SubaccountID: cfg.SubaccountID,
		Params:       vaultParams(cfg.Vault),
		State:        marketState,
		Stream:       ws,
		Instruments:  ws,
		Trade:        ws,
		Authorizer:   auth,
		Recorder:     recorder,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault executor")
	}

	// --- 5. Status Server ---
	webServer := web.NewWebServer(os.Getenv("WEB_PORT"), cfg.VaultName, executor, marketState)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. Deposit Reconciler ---
	chain, err := web3.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to settlement chain")
	}
	defer chain.Close()
	reconciler, err := web3.NewReconciler(chain, cfg.Chain)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create deposit reconciler")
	}
	go reconciler.Run(ctx, DEPOSIT_INTERVAL)

	// --- 7. Run the Lifecycle ---
	if err := executor.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Vault executor terminated")
	}
	log.Info().Msg("Option vault engine stopped")
}

// vaultParams maps the flat environment configuration onto the lifecycle's
// parameter tree.
func vaultParams(v config.VaultParams) lifecycle.Params {
	return lifecycle.Params{
		Currency:           v.Currency,
		SpotName:           v.SpotName,
		CashName:           v.CashName,
		ExpiryDays:         v.ExpiryDays,
		MinExpiryHours:     v.MinExpiryHours,
		TargetDelta:        v.TargetDelta,
		MaxDelta:           v.MaxDelta,
		OptionAuctionDelay: v.OptionAuctionDelay,
		SpotAuctionDelay:   v.SpotAuctionDelay,
		OptionAuction: lifecycle.OptionAuctionParams{
			InitIVSpread:         v.InitIVSpread,
			IVSpreadPerMin:       v.IVSpreadPerMin,
			MaxIVSpread:          v.MaxIVSpread,
			AuctionDuration:      time.Duration(v.OptionAuctionSec) * time.Second,
			PriceChangeTolerance: v.PriceChangeTolerance,
		},
		SpotAuction: lifecycle.SpotAuctionParams{
			InitSpread:      v.InitSpotSpread,
			SpreadPerMin:    v.SpotSpreadPerMin,
			MaxSpread:       v.MaxSpotSpread,
			AuctionDuration: time.Duration(v.SpotAuctionSec) * time.Second,
			MaxCash:         v.MaxCash,
			RoundUpSells:    v.RoundUpSells,
		},
	}
}
