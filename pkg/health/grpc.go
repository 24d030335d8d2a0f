package health

import (
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCServer returns a gRPC health service that mirrors the checker. The
// overall status is reported for the empty service name and for service.
func (c *Checker) NewGRPCServer(service string) *health.Server {
	srv := health.NewServer()

	set := func(healthy bool) {
		status := healthpb.HealthCheckResponse_SERVING
		if !healthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		srv.SetServingStatus("", status)
		if service != "" {
			srv.SetServingStatus(service, status)
		}
	}

	set(c.IsSystemHealthy())
	c.OnChange(set)
	return srv
}
