package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dutch-auction-service/internal/adapters/broadcaster"
	"dutch-auction-service/internal/adapters/db"
	"dutch-auction-service/internal/adapters/memory"
	"dutch-auction-service/internal/adapters/redis"
	"dutch-auction-service/internal/app"
	"dutch-auction-service/internal/config"
	"dutch-auction-service/internal/ports/outbound"
)

// runtime is the wired service graph for one storage driver
type runtime struct {
	services    *app.Services
	broadcaster outbound.Broadcaster
	queue       outbound.UpkeepQueue
	challenges  outbound.ChallengeStore
	conn        *db.Connection
	closers     []func() error
}

// openRuntime connects the configured backends and seeds the admin set
func openRuntime(ctx context.Context, env *environment) (*runtime, error) {
	rt := &runtime{}
	var uow outbound.UnitOfWork

	switch env.cfg.Storage.Driver {
	case config.DriverMemory:
		uow = memory.NewStore()
		rt.queue = memory.NewQueue()
		rt.challenges = memory.NewChallenges(time.Now)
		rt.broadcaster = broadcaster.NewLocalBroadcaster(env.logger)
		env.logger.Info().Msg("Using in-memory storage")

	case config.DriverPostgres:
		conn, err := db.NewConnection(ctx, env.cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.conn = conn
		rt.closers = append(rt.closers, conn.Close)
		env.logger.Info().Msg("Database connection established")

		redisClient := redis.NewClient(env.cfg.Redis)
		if err := redis.Ping(ctx, redisClient); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
			RedisClient: redisClient,
			Logger:      env.logger,
		})
		// Closing the broadcaster also closes the shared Redis client.
		rt.closers = append(rt.closers, redisBroadcaster.Close)
		env.logger.Info().Msg("Redis connection established")

		uow = db.NewRepositoryFactory(conn)
		rt.queue = redis.NewUpkeepQueue(redisClient)
		rt.challenges = redis.NewChallengeStore(redisClient)
		rt.broadcaster = redisBroadcaster

	default:
		return nil, fmt.Errorf("unknown storage driver %q", env.cfg.Storage.Driver)
	}

	rt.services = app.NewServices(app.ServicesParams{
		UnitOfWork: uow,
		Queue:      rt.queue,
		Publisher:  rt.broadcaster,
		Clock:      time.Now,
		Logger:     env.logger,
	})

	if admins := env.cfg.AdminSet(); len(admins) > 0 {
		if err := rt.services.Admins.Seed(ctx, admins); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

// Close releases backends in reverse order of acquisition
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
	rt.closers = nil
}

func parseAddress(flag, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("--%s must be a hex address, got %q", flag, raw)
	}
	return common.HexToAddress(raw), nil
}
