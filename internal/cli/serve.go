package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dutch-auction-service/internal/adapters/rest"
	"dutch-auction-service/internal/adapters/scheduler"
	"dutch-auction-service/internal/adapters/ws"
	"dutch-auction-service/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket and REST servers with the upkeep scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		env := getEnv()
		logger := env.logger
		logger.Info().Str("version", version.String()).Msg("Starting Dutch Auction Service...")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		rt, err := openRuntime(ctx, env)
		if err != nil {
			return err
		}
		defer rt.Close()

		upkeepScheduler := scheduler.NewUpkeepScheduler(scheduler.UpkeepSchedulerParams{
			Upkeep:    rt.services.Upkeep,
			Queue:     rt.queue,
			Interval:  env.cfg.Upkeep.Interval,
			BatchSize: env.cfg.Upkeep.BatchSize,
			Workers:   env.cfg.Upkeep.Workers,
			Logger:    logger,
		})
		upkeepScheduler.Start()

		wsServer := ws.NewServer(ws.ServerParams{
			Config:            env.cfg,
			AuctionService:    rt.services.Auctions,
			BidService:        rt.services.Bids,
			CollateralService: rt.services.Collateral,
			UpkeepService:     rt.services.Upkeep,
			Broadcaster:       rt.broadcaster,
			Challenges:        rt.challenges,
			Logger:            logger,
		})
		restServer := rest.NewServer(rest.ServerParams{
			Config:         env.cfg,
			AuctionService: rt.services.Auctions,
			UpkeepService:  rt.services.Upkeep,
			Logger:         logger,
		})

		go func() {
			if err := wsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start WebSocket server")
				cancel()
			}
		}()
		go func() {
			if err := restServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start REST server")
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		case <-ctx.Done():
			logger.Info().Msg("Context cancelled")
		}

		logger.Info().Msg("Starting graceful shutdown...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		upkeepScheduler.Stop()

		if err := restServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error stopping REST server")
		}
		if err := wsServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error stopping WebSocket server")
		}

		logger.Info().Msg("Graceful shutdown completed")
		return nil
	},
}
