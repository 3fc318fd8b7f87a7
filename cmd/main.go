package main

import (
	stdlog "log"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/axpect/staffhub/config"
	"github.com/axpect/staffhub/internal/consumer"
	"github.com/axpect/staffhub/internal/handlers"
	"github.com/axpect/staffhub/internal/repositories"
	"github.com/axpect/staffhub/internal/routers"
	"github.com/axpect/staffhub/internal/services"
	"github.com/axpect/staffhub/internal/storage"
	"github.com/axpect/staffhub/internal/utils"
	"github.com/axpect/staffhub/internal/ws"
	"github.com/axpect/staffhub/middleware/jwt"
	logger "github.com/axpect/staffhub/middleware/log"
	"github.com/axpect/staffhub/pkg/mq"
	"github.com/axpect/staffhub/utils/snowflake"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		stdlog.Fatalf("配置初始化失败: %v", err)
	}

	lg, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		stdlog.Fatalf("日志初始化失败: %v", err)
	}
	defer lg.Close()

	// 初始化 PostgreSQL
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		lg.Fatal("postgres 初始化失败", zap.Error(err))
	}

	// 初始化 Redis；不可用时在线状态与跨实例广播降级为单机模式
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		lg.Warn("redis 初始化失败，降级为单机模式", zap.Error(err))
		redisClient = nil
	}

	// 初始化雪花 ID 生成器
	idGen, err := snowflake.NewGenerator(cfg.Gateway.WorkerID)
	if err != nil {
		lg.Fatal("雪花生成器初始化失败", zap.Error(err))
	}

	// 初始化协程池，扇出降级直投时使用
	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.Start()
	defer pool.Stop()

	// 初始化仓储层
	userRepo := repositories.NewUserRepository(postgres)
	groupRepo := repositories.NewGroupRepository(postgres)
	messageRepo := repositories.NewMessageRepository(postgres)
	deliveryRepo := repositories.NewDeliveryRepository(postgres)
	reactionRepo := repositories.NewReactionRepository(postgres)
	notificationRepo := repositories.NewNotificationRepository(postgres)
	presenceRepo := repositories.NewPresenceRepository(postgres, redisClient)

	// 初始化服务层
	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)
	authService := services.NewAuthService(userRepo, tokens)
	chatService := services.NewChatService(groupRepo, messageRepo, deliveryRepo, reactionRepo, userRepo, idGen)

	// 初始化 Kafka Producer
	kafkaProducer, err := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		lg.Warn("Kafka 生产者初始化失败，扇出将以降级模式直接投递", zap.Error(err))
		kafkaProducer = nil
	} else {
		defer kafkaProducer.Close()
	}

	// 初始化 WebSocket Hub
	hub := ws.NewHub(redisClient, lg)
	go hub.Run()

	notifyService := services.NewNotifyService(
		groupRepo, userRepo, notificationRepo, deliveryRepo, presenceRepo,
		kafkaProducer, pool, hub, lg,
	)

	// 初始化 Kafka Consumer (如果 Kafka 可用)
	if kafkaProducer != nil {
		fanoutConsumer := consumer.NewFanoutConsumer(notifyService, lg)
		group, err := consumer.StartConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, fanoutConsumer)
		if err != nil {
			lg.Warn("Kafka 消费者初始化失败，扇出将以降级模式直接投递", zap.Error(err))
			notifyService.Producer = nil
		} else {
			defer group.Close()
		}
	}

	// 初始化处理器
	authHandler := handlers.NewAuthHandler(authService)
	groupHandler := handlers.NewGroupHandler(chatService)
	gateway := ws.NewGateway(hub, chatService, notifyService, presenceRepo, lg)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	routers.SetupRoutes(r, authHandler, groupHandler, gateway, tokens, lg)

	lg.Info("正在启动服务器", zap.Int("port", cfg.Server.Port))
	if err := r.Run(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		lg.Fatal("启动服务器失败", zap.Error(err))
	}
}
