package main

import (
	"net"

	config "github.com/NordCoder/checkengine/internal/config/engine"
	"github.com/NordCoder/checkengine/internal/obs"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const engineService = "checkengine.Engine"

// buildGRPCServer exposes the standard health service so orchestrators can
// tell whether the scheduler is running.
func buildGRPCServer(cfg *config.Config) (*grpc.Server, *grpchealth.Server, net.Listener, error) {
	grpcMetrics := grpcprometheus.NewServerMetrics()

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	s := grpc.NewServer(opts...)
	hs := grpchealth.NewServer()
	setServing(hs, false)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	grpcMetrics.InitializeMetrics(s)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return s, hs, ln, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
	return s.Serve(ln)
}

func setServing(hs *grpchealth.Server, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(engineService, st)
}
