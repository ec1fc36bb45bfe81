package milvus

import (
	"context"
	"fmt"

	"RepoChat/backend/go/internal/config"
	"RepoChat/backend/go/pkg/logger"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client       // Milvus 客户端实例。
	Config config.MilvusConfig // Milvus 配置。
	log    *logger.Logger
}

// NewClient 连接 Milvus 并确认目标集合已经存在。集合由运维预先创建，这里不会创建。
func NewClient(ctx context.Context, cfg config.MilvusConfig, log *logger.Logger) (*MilvusClient, error) {
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("无法连接到 Milvus: %w", err)
	}
	mc := &MilvusClient{Client: c, Config: cfg, log: log}

	exists, err := c.HasCollection(ctx, cfg.Collection)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("检查集合 '%s' 是否存在时出错: %w", cfg.Collection, err)
	}
	if !exists {
		c.Close()
		return nil, fmt.Errorf("集合 '%s' 不存在", cfg.Collection)
	}

	log.WithField("collection", cfg.Collection).Info("成功连接到 Milvus")
	return mc, nil
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
