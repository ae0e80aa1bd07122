package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/studyhall/internal/api"
	"github.com/charlesng35/studyhall/internal/app"
	"github.com/charlesng35/studyhall/internal/app/maintenance"
	iauth "github.com/charlesng35/studyhall/internal/auth"
	"github.com/charlesng35/studyhall/internal/cache"
	"github.com/charlesng35/studyhall/internal/database"
	"github.com/charlesng35/studyhall/internal/middleware"
	"github.com/charlesng35/studyhall/internal/monitoring"
	"github.com/charlesng35/studyhall/internal/monitoring/checks"
	"github.com/charlesng35/studyhall/internal/realtime"
	"github.com/charlesng35/studyhall/internal/services"
	"github.com/charlesng35/studyhall/internal/study"
	"github.com/charlesng35/studyhall/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisStore
	Hub        *realtime.Hub
	Gateway    *realtime.Gateway
	Loop       *realtime.Loop
	Engine     *study.Engine
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore
	Router     *gin.Engine
	stopLoop   context.CancelFunc
	loopExited chan struct{}
}

// bootstrapRuntime initialises the database, cache, study engine, gateway and router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	var shared cache.Store = dbStore

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			shared = stack.Redis
			log.Info("redis connected")
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	users, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	identity, err := iauth.NewIdentityResolver(jwtSvc, users)
	if err != nil {
		return nil, fmt.Errorf("initialise identity resolver: %w", err)
	}
	messages, err := services.NewMessageService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise message service: %w", err)
	}
	records, err := services.NewStudyRecordService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise study record service: %w", err)
	}

	var sessions study.SessionStore = study.NewMemoryStore()
	if cfg.Study.UsesCacheStore() {
		store, storeErr := study.NewCacheStore(shared, cfg.Study.SessionTTL)
		if storeErr != nil {
			return nil, fmt.Errorf("initialise session store: %w", storeErr)
		}
		sessions = store
		log.Info("study sessions stored in shared cache", zap.Bool("redis", stack.Redis != nil))
	}

	stack.Hub = realtime.NewHub(cfg.HubConfig())
	stack.Engine, err = study.NewEngine(study.NewRegistry(), sessions, records, messages, stack.Hub, cfg.Study.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise study engine: %w", err)
	}

	stack.Loop = realtime.NewLoop(cfg.Realtime.EventQueue)
	loopCtx, cancel := context.WithCancel(context.Background())
	stack.stopLoop = cancel
	stack.loopExited = make(chan struct{})
	go func() {
		defer close(stack.loopExited)
		stack.Loop.Run(loopCtx)
	}()

	stack.Gateway, err = realtime.NewGateway(stack.Hub, stack.Loop, stack.Engine, messages, realtime.GatewayConfig{SaveTimeout: cfg.Study.PersistTimeout})
	if err != nil {
		return nil, fmt.Errorf("initialise realtime gateway: %w", err)
	}

	engine, loop := stack.Engine, stack.Loop
	stack.Cleaner = maintenance.NewCleaner(messages, dbStore,
		maintenance.WithMessageRetention(cfg.Maintenance.MessageRetentionDays, cfg.Maintenance.RetentionSchedule),
		maintenance.WithCacheSchedule(cfg.Maintenance.CachePurgeSchedule),
		maintenance.WithStats(func(ctx context.Context) error {
			return loop.Do(ctx, engine.RefreshGauges)
		}, cfg.Maintenance.StatsSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	if stack.Redis != nil {
		stack.RateStore = middleware.NewCacheRateStore(stack.Redis)
	} else {
		stack.RateStore = middleware.NewMemoryRateStore(cfg.RateLimit.Window)
	}

	redisProbe := checks.Redis(nil, cfg.Cache.Redis.Enabled)
	if stack.Redis != nil {
		redisProbe = checks.Redis(stack.Redis, true)
	}

	stack.Router, err = api.NewRouter(cfg, api.Dependencies{
		DB:        stack.DB,
		Identity:  identity,
		Messages:  messages,
		Records:   records,
		Gateway:   stack.Gateway,
		RateStore: stack.RateStore,
		Probes:    []monitoring.Check{redisProbe, checks.EventLoop(stack.Loop)},
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown closes realtime connections, lets their call cleanup finish on the event loop,
// then stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Hub != nil {
		s.Hub.Close()
	}
	if s.Gateway != nil {
		if err := s.Gateway.Drain(ctx); err != nil {
			log.Warn("realtime connections did not drain", zap.Error(err))
		}
	}
	if s.stopLoop != nil {
		s.stopLoop()
		<-s.loopExited
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if closer, ok := s.RateStore.(interface{ Close() }); ok {
		closer.Close()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
