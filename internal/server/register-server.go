package server

import (
	"fmt"

	capi "github.com/hashicorp/consul/api"
	"github.com/hashicorp/go-hclog"
)

type RegisterServer struct {
	ServiceID   string
	ServiceName string
	Addr        string
	Port        int
	HealthPort  int
	client      *capi.Client
	logger      hclog.Logger
}

// newRegisterServer builds a Consul client from cfg; a nil cfg means
// capi.DefaultConfig, which reads CONSUL_HTTP_ADDR and friends.
func newRegisterServer(cfg *capi.Config, serviceID, serviceName, addr string, port, healthPort int, logger hclog.Logger) (*RegisterServer, error) {
	if cfg == nil {
		cfg = capi.DefaultConfig()
	}
	client, err := capi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &RegisterServer{
		ServiceID:   serviceID,
		ServiceName: serviceName,
		Addr:        addr,
		Port:        port,
		HealthPort:  healthPort,
		client:      client,
		logger:      logger,
	}, nil
}

func (r *RegisterServer) registration() *capi.AgentServiceRegistration {
	return &capi.AgentServiceRegistration{
		ID:      r.ServiceID,
		Name:    r.ServiceName,
		Address: r.Addr,
		Port:    r.Port,
		Tags:    []string{"http", "notes"},
		Check: &capi.AgentServiceCheck{
			GRPC:                           fmt.Sprintf("%s:%d/%s", r.Addr, r.HealthPort, r.ServiceName),
			Interval:                       "10s",
			Timeout:                        "1s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

func (r *RegisterServer) Register() error {
	if err := r.client.Agent().ServiceRegister(r.registration()); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	r.logger.Info("registered in Consul", "service_id", r.ServiceID)
	return nil
}

func (r *RegisterServer) Deregister() error {
	if err := r.client.Agent().ServiceDeregister(r.ServiceID); err != nil {
		return fmt.Errorf("failed to deregister: %w", err)
	}
	r.logger.Info("deregistered from Consul", "service_id", r.ServiceID)
	return nil
}
