// Package main 提供数据库迁移命令行工具
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/pkg/logger"
)

// MigrationRecord 迁移记录表
type MigrationRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Version   string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name      string `gorm:"type:varchar(255);not null"`
	AppliedAt int64  `gorm:"type:bigint;not null"`
}

// TableName 返回表名
func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// Migration 单个迁移
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

func main() {
	var (
		command    string
		migrateDir string
		dsn        string
	)

	flag.StringVar(&command, "cmd", "up", "Command: up, down, status")
	flag.StringVar(&migrateDir, "dir", "migrations", "Migrations directory")
	flag.StringVar(&dsn, "dsn", "", "Database DSN (overrides config)")
	flag.Parse()

	if err := logger.Init(&logger.Config{
		Level:       "info",
		Format:      "console",
		ServiceName: "migrate",
	}); err != nil {
		fmt.Printf("init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("load config failed", zap.Error(err))
		}
		dsn = cfg.Database.DSN()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}

	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		logger.Fatal("init schema_migrations failed", zap.Error(err))
	}

	migrations, err := loadMigrations(migrateDir)
	if err != nil {
		logger.Fatal("load migrations failed", zap.Error(err))
	}

	switch command {
	case "up":
		err = migrateUp(db, migrations)
	case "down":
		err = migrateDown(db, migrations)
	case "status":
		err = printStatus(db, migrations)
	default:
		logger.Fatal("unknown command", zap.String("cmd", command))
	}
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}

// loadMigrations 读取 NNNN_name.up.sql / NNNN_name.down.sql 对
func loadMigrations(dir string) ([]*Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		base := strings.TrimSuffix(strings.TrimSuffix(name, ".up.sql"), ".down.sql")
		parts := strings.SplitN(base, "_", 2)
		if len(parts) != 2 {
			continue
		}
		version := parts[0]

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: parts[1]}
			byVersion[version] = m
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(name, ".up.sql") {
			m.UpSQL = string(content)
		} else if strings.HasSuffix(name, ".down.sql") {
			m.DownSQL = string(content)
		}
	}

	migrations := make([]*Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// migrateUp 应用所有未执行的迁移
func migrateUp(db *gorm.DB, migrations []*Migration) error {
	for _, m := range migrations {
		var count int64
		db.Model(&MigrationRecord{}).Where("version = ?", m.Version).Count(&count)
		if count > 0 {
			continue
		}
		if m.UpSQL == "" {
			return fmt.Errorf("migration %s has no up sql", m.Version)
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.UpSQL).Error; err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now().UnixMilli(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", m.Version, err)
		}
		logger.Info("migration applied", zap.String("version", m.Version), zap.String("name", m.Name))
	}
	return nil
}

// migrateDown 回滚最后一个已执行迁移
func migrateDown(db *gorm.DB, migrations []*Migration) error {
	var last MigrationRecord
	if err := db.Order("version DESC").First(&last).Error; err != nil {
		return fmt.Errorf("nothing to roll back: %w", err)
	}

	for _, m := range migrations {
		if m.Version != last.Version {
			continue
		}
		if m.DownSQL == "" {
			return fmt.Errorf("migration %s has no down sql", m.Version)
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.DownSQL).Error; err != nil {
				return err
			}
			return tx.Delete(&MigrationRecord{}, last.ID).Error
		})
		if err != nil {
			return fmt.Errorf("roll back %s: %w", m.Version, err)
		}
		logger.Info("migration rolled back", zap.String("version", m.Version))
		return nil
	}
	return fmt.Errorf("migration %s not found on disk", last.Version)
}

// printStatus 打印迁移状态
func printStatus(db *gorm.DB, migrations []*Migration) error {
	applied := make(map[string]bool)
	var records []MigrationRecord
	if err := db.Find(&records).Error; err != nil {
		return err
	}
	for _, record := range records {
		applied[record.Version] = true
	}

	for _, m := range migrations {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%-8s %-32s %s\n", m.Version, m.Name, state)
	}
	return nil
}
