package etcd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"RepoChat/backend/go/internal/config"
	"RepoChat/backend/go/pkg/logger"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/repochat/services"

// ServiceRegistry 将服务实例注册到 etcd，租约过期后实例自动消失。
type ServiceRegistry struct {
	cli *clientv3.Client // etcd client
	log *logger.Logger

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	stop    context.CancelFunc
}

// NewServiceRegistry creates a new ServiceRegistry.
func NewServiceRegistry(cfg config.DiscoveryConfig, log *logger.Logger) (*ServiceRegistry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接到 etcd: %w", err)
	}
	return &ServiceRegistry{cli: cli, log: log}, nil
}

// ServiceKey returns the etcd key an instance is registered under.
func ServiceKey(serviceName, addr string) string {
	return fmt.Sprintf("%s/%s/%s", keyPrefix, strings.Trim(serviceName, "/"), addr)
}

// Register registers a service instance and keeps its lease alive until
// Deregister is called.
func (s *ServiceRegistry) Register(ctx context.Context, serviceName, addr string, ttl int64) error {
	leaseResp, err := s.cli.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	key := ServiceKey(serviceName, addr)
	if _, err = s.cli.Put(ctx, key, addr, clientv3.WithLease(leaseResp.ID)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	keepCtx, stop := context.WithCancel(context.Background())
	keepAliveCh, err := s.cli.KeepAlive(keepCtx, leaseResp.ID)
	if err != nil {
		stop()
		return fmt.Errorf("keep lease alive: %w", err)
	}

	s.mu.Lock()
	s.leaseID, s.stop = leaseResp.ID, stop
	s.mu.Unlock()

	go func() {
		for range keepAliveCh {
		}
		// Lease expired, was revoked, or Deregister stopped the keep-alive.
		if keepCtx.Err() == nil {
			s.log.WithField("key", key).Warn("etcd lease keep-alive ended")
		}
	}()

	s.log.WithPayload(map[string]interface{}{"key": key, "ttl": ttl}).Info("Service registered in etcd")
	return nil
}

// Discover returns the addresses registered for serviceName.
func (s *ServiceRegistry) Discover(ctx context.Context, serviceName string) ([]string, error) {
	resp, err := s.cli.Get(ctx, ServiceKey(serviceName, ""), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	var addrs []string
	for _, ev := range resp.Kvs {
		addrs = append(addrs, string(ev.Value))
	}
	return addrs, nil
}

// Deregister stops the keep-alive and revokes the lease, which removes the key.
func (s *ServiceRegistry) Deregister(ctx context.Context) error {
	s.mu.Lock()
	leaseID, stop := s.leaseID, s.stop
	s.leaseID, s.stop = 0, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	stop()
	_, err := s.cli.Revoke(ctx, leaseID)
	return err
}

// Close closes the etcd client.
func (s *ServiceRegistry) Close() error {
	return s.cli.Close()
}
