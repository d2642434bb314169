package main

import (
	"fmt"
	"net"

	"ohlc-streamer/src/config"
	datasource "ohlc-streamer/src/data_source"
	"ohlc-streamer/src/engine"
	pb "ohlc-streamer/src/grpc_control"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/server"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// startServers starts the HTTP/websocket server and, unless grpc_port is 0,
// the gRPC control server. It returns the gRPC server for shutdown.
func startServers(
	srv *server.Server,
	eng *engine.Engine,
	multiSource *datasource.MultiSourceManager,
	config *config.Config,
	appLogger *logger.Logger,
) *grpc.Server {

	// 1. HTTP + websocket server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 2. gRPC Control Server
	if config.GrpcPort == 0 {
		appLogger.Info("gRPC control server disabled")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", config.GrpcHost, config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		appLogger.Critical("failed to listen for gRPC: %v", err)
	}

	grpcServer := grpc.NewServer()
	controlService := pb.NewControlService(eng, srv, multiSource, appLogger.Named("ControlService"))
	pb.RegisterControlServer(grpcServer, controlService)

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Critical("failed to serve gRPC: %v", err)
		}
	}()
	return grpcServer
}
