package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ValetFlow/ValetFlow/internal/bot"
	"github.com/ValetFlow/ValetFlow/internal/common/config"
	"github.com/ValetFlow/ValetFlow/internal/common/db"
	"github.com/ValetFlow/ValetFlow/internal/common/logger"
	"github.com/ValetFlow/ValetFlow/internal/common/server"
	"github.com/ValetFlow/ValetFlow/internal/common/tracing"
	"github.com/ValetFlow/ValetFlow/internal/notify"
	"github.com/ValetFlow/ValetFlow/internal/photo"
	"github.com/ValetFlow/ValetFlow/internal/request"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
	"github.com/ValetFlow/ValetFlow/internal/user"
)

var (
	configPath  = flag.String("config", "configs/valet-service.json", "配置文件路径")
	consulKVKey = flag.String("consul-kv", "", "从 Consul KV 读取配置的 key（优先于配置文件）")
)

func main() {
	flag.Parse()

	// 加载配置（可选 Consul KV 来源）
	var cfg *config.Config
	var err error
	if *consulKVKey != "" {
		base := config.GetConfig()
		cfg, err = config.LoadConfigFromConsulKV(base.Consul.Host, base.Consul.Port, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// bot 凭证缺失是启动致命错误
	token, err := config.BotToken()
	if err != nil {
		log.Fatalf("missing bot credential: %v", err)
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := gormDB.AutoMigrate(&user.User{}, &request.Request{}, &photo.Photo{}); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 聊天通道客户端
	tg, err := telegram.NewClient(token, telegram.Options{
		Endpoint:       cfg.Telegram.APIEndpoint,
		PollTimeout:    cfg.Telegram.PollTimeout,
		RequestTimeout: cfg.Telegram.RequestTimeout,
		SendRate:       cfg.Telegram.SendRate,
		SendBurst:      cfg.Telegram.SendBurst,
	}, log)
	if err != nil {
		log.Fatalf("failed to init telegram client: %v", err)
	}

	// 组装领域服务
	userSvc := user.NewService(user.NewRepo(gormDB))
	requestSvc := request.NewService(request.NewRepo(gormDB), userSvc)
	photoSvc := photo.NewService(photo.NewRepo(gormDB), requestSvc)
	dispatcher := notify.NewDispatcher(userSvc, tg, log)

	b := bot.New(tg, userSvc, requestSvc, photoSvc, dispatcher, cfg.Server.Name, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Infof("received signal %v, shutting down...", sig)
		cancel()
	}()

	// 运维探活端点（Consul 注册在其内部）
	go func() {
		if err := server.RunHealthServer(ctx, cfg, log); err != nil {
			log.Warnf("health server exited: %v", err)
		}
	}()

	log.Infof("%s started, polling for updates", cfg.Server.Name)
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("valet-service exited with error: %v", err)
	}
	log.Info("valet-service stopped")
}
