package grpc

import (
	"fmt"
	"net"

	"pratham-chat/backend/pkg/health"
	"pratham-chat/backend/pkg/logger"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name the chat service reports health under
const ServiceName = "pratham.chat.v1.Chat"

// Server exposes the chat health status over gRPC
type Server struct {
	grpc *grpc.Server
	log  *logger.Logger
}

// NewServer registers the health service backed by checker
func NewServer(checker *health.Checker, log *logger.Logger) *Server {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, checker.NewGRPCServer(ServiceName))
	reflection.Register(srv)

	return &Server{grpc: srv, log: logger.Or(log)}
}

// Serve listens on port and blocks until the server stops
func (s *Server) Serve(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener
func (s *Server) ServeListener(lis net.Listener) error {
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop waits for in-flight calls and stops the server
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
