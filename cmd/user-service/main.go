// Command user-service exposes user validation over gRPC for internal callers.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MikeMC777/storefront/internal/config"
	"github.com/MikeMC777/storefront/internal/database"
	"github.com/MikeMC777/storefront/internal/identityrpc"
	"github.com/MikeMC777/storefront/internal/user"
)

func main() {
	boot := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load(boot)
	log := cfg.Logger().With().Str("service", "user-service").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	users := user.NewService(user.NewPGRepo(pool), log)
	gs, hs := identityrpc.NewGRPCServer(users, log)

	lis, err := net.Listen("tcp", cfg.UserSvcAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.UserSvcAddr).Msg("listen")
	}

	go func() {
		<-ctx.Done()
		hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		hs.SetServingStatus(identityrpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Warn().Msg("graceful stop timed out, forcing")
			gs.Stop()
		}
	}()

	log.Info().Str("addr", lis.Addr().String()).Msg("user-service listening")
	if err := gs.Serve(lis); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
	log.Info().Msg("user-service stopped")
}
