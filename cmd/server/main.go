// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatga-go/internal/config"
	"chatga-go/internal/handler"
	"chatga-go/internal/middleware"
	"chatga-go/internal/model"
	"chatga-go/internal/pipeline"
	"chatga-go/internal/repository"
	"chatga-go/internal/service"
	"chatga-go/pkg/database"
	"chatga-go/pkg/embedding"
	"chatga-go/pkg/es"
	"chatga-go/pkg/kafka"
	"chatga-go/pkg/llm"
	"chatga-go/pkg/log"
	"chatga-go/pkg/storage"
	"chatga-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储、向量库和消息队列
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 数据表不存在时自动建表
	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.KnowledgeBase{},
		&model.KnowledgeFile{},
	); err != nil {
		log.Fatalf("数据表迁移失败: %v", err)
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	convRepo := repository.NewConversationRepository(database.DB)
	msgRepo := repository.NewMessageRepository(database.DB)
	kbRepo := repository.NewKnowledgeRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpireMinutes)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepo, jwtManager)
	conversationService := service.NewConversationService(convRepo, msgRepo)
	knowledgeService := service.NewKnowledgeService(kbRepo)
	qaService := service.NewQAService(kbRepo, embeddingClient, llmClient)
	chatService := service.NewChatService(kbRepo, qaService)

	// 6. 初始化文档入库管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(embeddingClient, cfg.Embedding, cfg.QA, kbRepo)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	authHandler := handler.NewAuthHandler(userService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	knowledgeHandler := handler.NewKnowledgeHandler(knowledgeService)
	chatHandler := handler.NewChatHandler(chatService, qaService, userService, jwtManager)

	// 8. 注册路由
	// 无需认证的路由 (公开访问)
	r.POST("/token", authHandler.Token)
	r.POST("/register", authHandler.Register)
	// WebSocket 通道在连接时自带令牌
	r.GET("/local_doc_qa/stream_chat/:token", chatHandler.StreamChat)

	// 需要认证的路由 (仅限登录用户访问)
	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware(jwtManager, userService))
	{
		authed.POST("/logout", authHandler.Logout)

		authed.GET("/conversations", conversationHandler.List)
		authed.POST("/conversation", conversationHandler.Create)
		authed.GET("/conversation", conversationHandler.ListMessages)
		authed.PUT("/conversation", conversationHandler.UpdateTitle)
		authed.DELETE("/conversation", conversationHandler.Delete)
		authed.POST("/message", conversationHandler.CreateMessage)

		localDocQA := authed.Group("/local_doc_qa")
		{
			localDocQA.POST("/upload_file", knowledgeHandler.UploadFile)
			localDocQA.GET("/list_knowledge_bases", knowledgeHandler.ListKnowledgeBases)
			localDocQA.GET("/list_files", knowledgeHandler.ListFiles)
			localDocQA.DELETE("/delete_file", knowledgeHandler.DeleteFile)
			localDocQA.DELETE("/delete_knowledge_base", knowledgeHandler.DeleteKnowledgeBase)
			localDocQA.POST("/local_doc_chat", chatHandler.LocalDocChat)
			localDocQA.POST("/chat", chatHandler.Chat)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
