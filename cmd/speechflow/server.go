package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/speechflow/api/handlers"
	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/config"
	"github.com/BaSui01/speechflow/game"
	"github.com/BaSui01/speechflow/internal/metrics"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/retry"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/storage"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 SpeechFlow 的主服务器，负责装配语音管线的全部组件：
// 对象存储 → 两级缓存 → 提供商回退链 → 编排器 → 游戏层 → HTTP 路由。
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger

	// 基础设施
	db         *gorm.DB
	fastCache  *redis.Client
	objects    storage.ObjectStore
	audioCache *cache.AudioCache

	// 语音管线
	ttsOrchestrator *pipeline.TTSOrchestrator
	sttOrchestrator *pipeline.STTOrchestrator
	ttsChain        *speech.TTSChain
	sttChain        *speech.STTChain

	// 游戏层
	gameStore   *game.Store
	attemptFlow *game.AttemptFlow

	// Handlers
	healthHandler          *handlers.HealthHandler
	synthesizeHandler      *handlers.SynthesizeHandler
	transcribeHandler      *handlers.TranscribeHandler
	challengeHandler       *handlers.ChallengeHandler
	curriculumAudioHandler *handlers.CurriculumAudioHandler
	attemptHandler         *handlers.AttemptHandler
	prewarmHandler         *handlers.PrewarmHandler
	authMiddleware         *handlers.AuthMiddleware

	// 指标收集器
	metricsCollector *metrics.Collector

	// 热更新管理器
	hotReloadManager *config.HotReloadManager
	configAPIHandler *config.ConfigAPIHandler

	// HTTP 服务器
	httpServer    *http.Server
	metricsServer *http.Server

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc

	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewServer 装配服务器实例。装配失败（数据库不可达、存储配置非法、
// 生产环境启用 mock 转写器）直接返回错误，不启动半成品服务。
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}

	s.metricsCollector = metrics.NewCollector("speechflow", logger)

	if err := s.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	if err := s.initPipeline(); err != nil {
		return nil, fmt.Errorf("failed to init speech pipeline: %w", err)
	}
	if err := s.initGame(); err != nil {
		return nil, fmt.Errorf("failed to init game layer: %w", err)
	}
	s.initHandlers()

	return s, nil
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化热更新管理器
	if err := s.initHotReloadManager(); err != nil {
		return fmt.Errorf("failed to init hot reload manager: %w", err)
	}

	// 2. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 3. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Strings("tts_providers", s.ttsChain.Providers()),
		zap.Strings("stt_providers", s.sttChain.Providers()),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initInfrastructure 打开数据库、快速缓存和对象存储，装配两级音频缓存。
func (s *Server) initInfrastructure() error {
	db, err := openDatabase(s.cfg.Database, s.logger)
	if err != nil {
		return err
	}
	s.db = db

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(s.cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(s.cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(s.cfg.Database.ConnMaxLifetime)
	}

	// 快速层可选：未启用时 AudioCache 直接降级到持久层
	if s.cfg.Redis.Enabled {
		s.fastCache = redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
			PoolSize: s.cfg.Redis.PoolSize,
		})
		s.logger.Info("Fast cache layer enabled", zap.String("addr", s.cfg.Redis.Addr))
	} else {
		s.logger.Info("Fast cache layer disabled, falling back to durable store only")
	}

	objects, err := storage.NewObjectStore(s.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}
	s.objects = objects

	audioCache, err := cache.NewAudioCache(s.fastCache, objects, db, s.cfg.Cache, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create audio cache: %w", err)
	}
	s.audioCache = audioCache

	return nil
}

// initPipeline 按配置装配合成与转写链路。
// 未配置 API Key 的提供商被直接跳过，零提供商的链路允许启动
// （就绪检查会持续报告 degraded，方便排查配置缺失）。
func (s *Server) initPipeline() error {
	fallbackCfg := s.fallbackConfig()

	// TTS 提供商
	google := speech.NewGoogleTTSProvider(s.cfg.TTS.Google, s.logger)
	elevenlabs := speech.NewElevenLabsProvider(s.cfg.TTS.ElevenLabs, s.logger)
	openaiTTS := speech.NewOpenAITTSProvider(s.cfg.TTS.OpenAI, s.logger)

	// 成本优先 vs 质量优先：同一组提供商，不同排序
	costFirst := availableTTS(google, openaiTTS, elevenlabs)
	qualityFirst := availableTTS(elevenlabs, openaiTTS, google)

	for _, p := range []speech.TTSProvider{google, elevenlabs, openaiTTS} {
		if !p.Available() {
			s.logger.Warn("TTS provider not configured, skipping", zap.String("provider", p.Name()))
		}
	}

	s.ttsChain = speech.NewTTSChain(fallbackCfg, s.logger, costFirst...)
	qualityChain := speech.NewTTSChain(fallbackCfg, s.logger, qualityFirst...)
	s.ttsOrchestrator = pipeline.NewTTSOrchestrator(s.audioCache, pipeline.TTSChains{
		CostFirst:    s.ttsChain,
		QualityFirst: qualityChain,
	}, s.metricsCollector, s.logger)

	// STT 提供商
	sttProviders := make([]speech.STTProvider, 0, 3)
	openaiSTT := speech.NewOpenAISTTProvider(s.cfg.STT.OpenAI, s.logger)
	deepgram := speech.NewDeepgramProvider(s.cfg.STT.Deepgram, s.logger)
	for _, p := range []speech.STTProvider{openaiSTT, deepgram} {
		if p.Available() {
			sttProviders = append(sttProviders, p)
		} else {
			s.logger.Warn("STT provider not configured, skipping", zap.String("provider", p.Name()))
		}
	}
	if s.cfg.STT.AllowMock {
		mock, err := speech.NewMockSTTProvider(s.cfg.Production, s.logger)
		if err != nil {
			return err
		}
		sttProviders = append(sttProviders, mock)
		s.logger.Warn("Mock STT provider enabled, do not use in production")
	}

	s.sttChain = speech.NewSTTChain(fallbackCfg, s.logger, sttProviders...)
	sttOrchestrator, err := pipeline.NewSTTOrchestrator(s.sttChain, s.objects, pipeline.STTConfig{
		LocalMediaPrefix: s.cfg.STT.LocalMediaPrefix,
		DownloadTimeout:  s.cfg.STT.DownloadTimeout,
		Production:       s.cfg.Production,
	}, s.metricsCollector, s.logger)
	if err != nil {
		return err
	}
	s.sttOrchestrator = sttOrchestrator

	return nil
}

// fallbackConfig 把配置中的退避延迟映射到重试策略。
func (s *Server) fallbackConfig() speech.FallbackConfig {
	policy := retry.DefaultPolicy()
	busyPolicy := retry.BusyPolicy()
	if s.cfg.Fallback.InitialDelay > 0 {
		policy.InitialDelay = s.cfg.Fallback.InitialDelay
	}
	if s.cfg.Fallback.BusyInitialDelay > 0 {
		busyPolicy.InitialDelay = s.cfg.Fallback.BusyInitialDelay
	}
	policy.MaxRetries = s.cfg.Fallback.MaxRetries
	busyPolicy.MaxRetries = s.cfg.Fallback.MaxRetries
	return speech.FallbackConfig{
		MaxRetries: s.cfg.Fallback.MaxRetries,
		Policy:     policy,
		BusyPolicy: busyPolicy,
	}
}

// availableTTS 过滤出已配置 API Key 的提供商，保持传入的优先级顺序。
func availableTTS(providers ...speech.TTSProvider) []speech.TTSProvider {
	out := make([]speech.TTSProvider, 0, len(providers))
	for _, p := range providers {
		if p.Available() {
			out = append(out, p)
		}
	}
	return out
}

// initGame 装配挑战存储、进度汇聚与尝试评分流程。
func (s *Server) initGame() error {
	store, err := game.NewStore(s.db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create game store: %w", err)
	}
	s.gameStore = store

	sink := game.NewStoreSink(s.db, s.logger)
	s.attemptFlow = game.NewAttemptFlow(store, store, s.sttOrchestrator, sink, s.metricsCollector, s.logger)

	return nil
}

// initHandlers 初始化所有 handlers 并注册健康检查。
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.synthesizeHandler = handlers.NewSynthesizeHandler(s.ttsOrchestrator, s.logger)
	s.transcribeHandler = handlers.NewTranscribeHandler(s.sttOrchestrator, s.logger)
	s.challengeHandler = handlers.NewChallengeHandler(s.gameStore, s.ttsOrchestrator, s.logger)
	s.curriculumAudioHandler = handlers.NewCurriculumAudioHandler(s.audioCache, s.logger)
	s.attemptHandler = handlers.NewAttemptHandler(s.attemptFlow, s.gameStore, s.logger)
	s.prewarmHandler = handlers.NewPrewarmHandler(s.ttsOrchestrator, s.audioCache, s.cfg.Prewarm, s.logger)
	s.authMiddleware = handlers.NewAuthMiddleware(s.cfg.Auth.JWTSecret, s.logger)

	// 健康检查：数据库、快速缓存（若启用）、提供商链路
	s.healthHandler.RegisterCheck(handlers.NewDatabaseHealthCheck("database", func(ctx context.Context) error {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}))
	if s.fastCache != nil {
		s.healthHandler.RegisterCheck(handlers.NewRedisHealthCheck("fast_cache", func(ctx context.Context) error {
			return s.fastCache.Ping(ctx).Err()
		}))
	}
	s.healthHandler.RegisterCheck(handlers.NewProviderHealthCheck("tts_providers", func() int {
		return len(s.ttsChain.Providers())
	}))
	s.healthHandler.RegisterCheck(handlers.NewProviderHealthCheck("stt_providers", func() int {
		return len(s.sttChain.Providers())
	}))

	s.logger.Info("Handlers initialized")
}

// initHotReloadManager 初始化热更新管理器
func (s *Server) initHotReloadManager() error {
	opts := []config.HotReloadOption{
		config.WithHotReloadLogger(s.logger),
	}

	if s.configPath != "" {
		opts = append(opts, config.WithConfigPath(s.configPath))
	}

	s.hotReloadManager = config.NewHotReloadManager(s.cfg, opts...)

	// 注册配置变更回调
	s.hotReloadManager.OnChange(func(change config.ConfigChange) {
		s.logger.Info("Configuration changed",
			zap.String("path", change.Path),
			zap.String("source", change.Source),
			zap.Bool("requires_restart", change.RequiresRestart),
		)
	})

	// 注册配置重载回调
	s.hotReloadManager.OnReload(func(oldConfig, newConfig *config.Config) {
		s.logger.Info("Configuration reloaded")
		s.cfg = newConfig
	})

	ctx := context.Background()
	if err := s.hotReloadManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hot reload manager: %w", err)
	}

	s.configAPIHandler = config.NewConfigAPIHandler(s.hotReloadManager)

	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 注册全部路由并以非阻塞方式启动 HTTP 服务器。
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查与版本端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 语音 API：合成与转写（匿名按免费档位处理）
	// ========================================
	auth := s.authMiddleware
	mux.HandleFunc("/api/v1/tts/synthesize", auth.WithCaller(s.synthesizeHandler.HandleSynthesize))
	mux.HandleFunc("/api/v1/stt/transcribe", auth.WithCaller(s.transcribeHandler.HandleTranscribe))

	// ========================================
	// 游戏 API：课程、尝试、进度
	// ========================================
	mux.HandleFunc("/api/v1/game/challenges", auth.WithCaller(s.challengeHandler.HandleListChallenges))
	mux.HandleFunc("/api/v1/game/challenges/{id}", auth.WithCaller(s.challengeHandler.HandleGetChallenge))
	mux.HandleFunc("/api/v1/game/challenges/{id}/audio", auth.WithCaller(s.challengeHandler.HandleGetReferenceAudio))
	mux.HandleFunc("/api/v1/game/attempts", auth.WithCaller(s.attemptHandler.HandleAttempts))
	mux.HandleFunc("/api/v1/game/progress", auth.WithCaller(s.attemptHandler.HandleGetProgress))

	// ========================================
	// 课程 API：预热音频只读回放
	// ========================================
	mux.HandleFunc("/api/v1/curriculum/audio", auth.WithCaller(s.curriculumAudioHandler.HandleCurriculumAudio))

	// ========================================
	// 运维 API：课程预热（需要已认证的调用方）
	// ========================================
	mux.HandleFunc("/api/v1/admin/prewarm", auth.RequireCaller(s.prewarmHandler.HandlePrewarm))

	// ========================================
	// 配置管理 API（敏感管理端点，独立静态密钥保护）
	// ========================================
	if s.configAPIHandler != nil {
		configAuth := config.NewConfigAPIMiddleware(s.configAPIHandler, s.cfg.Auth.AdminAPIKey)
		mux.HandleFunc("/api/v1/config", configAuth.RequireAuth(s.configAPIHandler.HandleConfig))
		mux.HandleFunc("/api/v1/config/reload", configAuth.RequireAuth(s.configAPIHandler.HandleReload))
		mux.HandleFunc("/api/v1/config/fields", configAuth.RequireAuth(s.configAPIHandler.HandleFields))
		mux.HandleFunc("/api/v1/config/changes", configAuth.RequireAuth(s.configAPIHandler.HandleChanges))
		s.logger.Info("Configuration API registered")
	}

	// ========================================
	// 构建中间件链
	// ========================================
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger))
	}
	handler := Chain(mux, middlewares...)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		Handler:        handler,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 在独立端口暴露 Prometheus 指标。
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 阻塞直到收到 SIGINT/SIGTERM，然后优雅关闭。
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		s.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case <-s.shutdownCh:
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 停止热更新管理器
	if s.hotReloadManager != nil {
		if err := s.hotReloadManager.Stop(); err != nil {
			s.logger.Error("Hot reload manager shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 HTTP 服务器（排空在途请求）
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭快速缓存连接
	if s.fastCache != nil {
		if err := s.fastCache.Close(); err != nil {
			s.logger.Error("Fast cache close error", zap.Error(err))
		}
	}

	// 5. 关闭数据库连接
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				s.logger.Error("Database close error", zap.Error(err))
			}
		}
	}

	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
