package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ValetFlow/ValetFlow/internal/common/config"
	"github.com/ValetFlow/ValetFlow/internal/common/discovery"
	"github.com/ValetFlow/ValetFlow/internal/common/logger"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// RunHealthServer 运维探活端点：
// - 启动 gRPC health + reflection（无业务 RPC，业务入口是聊天通道）
// - 注册到 Consul（GRPC check）
// - ctx 取消时优雅退出
func RunHealthServer(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if cfg == nil {
		return fmt.Errorf("cfg is nil")
	}
	if log == nil {
		return fmt.Errorf("log is nil")
	}

	// Consul 客户端失败不阻塞启动
	consulClient, err := discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port)
	if err != nil {
		log.Warnf("failed to connect to Consul: %v", err)
		consulClient = nil
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HealthPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s := grpc.NewServer()

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(s)

	if consulClient != nil {
		serviceID := fmt.Sprintf("%s-%s", cfg.Server.Name, uuid.New().String())
		registry := discovery.NewServiceRegistry(
			consulClient,
			serviceID,
			cfg.Server.Name,
			cfg.Server.Host,
			cfg.Server.HealthPort,
			[]string{"telegram-bot"},
		)
		if err := registry.Register(); err != nil {
			log.Warnf("failed to register service to Consul: %v", err)
		} else {
			log.Infof("Service registered to Consul: %s", serviceID)
			defer func() {
				if err := registry.Deregister(); err != nil {
					log.Warnf("failed to deregister service from Consul: %v", err)
				}
			}()
		}
	}

	log.Infof("health endpoint listening on %s:%d", cfg.Server.Host, cfg.Server.HealthPort)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	}

	// 优雅关闭
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-time.After(5 * time.Second):
		log.Warn("health server shutdown timeout, forcing stop...")
		s.Stop()
	case <-stopped:
	}
	return nil
}
