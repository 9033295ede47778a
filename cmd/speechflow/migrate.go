package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/game"
)

// =============================================================================
// 🗃️ 数据库迁移命令
// =============================================================================

// runMigrate 打开数据库并迁移全部表结构（缓存元数据 + 游戏记录）。
// 迁移是幂等的，可在部署流水线中重复执行。
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Database not available", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&cache.Entry{},
		&game.Challenge{},
		&game.Attempt{},
		&game.Progress{},
	); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	logger.Info("Migration completed",
		zap.String("driver", cfg.Database.Driver))
}
