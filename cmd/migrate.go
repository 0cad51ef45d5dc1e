package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/anoixa/engi-tracker/database"
	"github.com/anoixa/engi-tracker/database/models"
	"github.com/anoixa/engi-tracker/utils"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Orphan ledger database tools",
}

// migrateSchemaCmd 对当前配置的数据库执行结构迁移
var migrateSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or update the orphan ledger tables in the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := bootstrap()
		defer func() { _ = log.Sync() }()

		p, err := database.NewGormProvider(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		if err := database.Migrate(p); err != nil {
			return err
		}
		log.Named("migrate").Infof("Schema of '%s' is up to date", p.Name())
		return nil
	},
}

// migrateRunCmd 在两个数据库之间复制孤儿台账
var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Copy the orphan ledger from one database to another",
	Long: `Copy pending orphan ledger entries from source to target database.

Examples:
  # Migrate from SQLite to PostgreSQL
  engi-tracker migrate run --from-sqlite ./data/orphans.db --to-postgres "host=localhost user=postgres password=secret dbname=engi port=5432"

  # Replace entries that already exist in the target
  engi-tracker migrate run --from-sqlite ./data/orphans.db --to-postgres "..." --on-conflict=overwrite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := migrateOptions{}
		opts.fromType, _ = cmd.Flags().GetString("from-type")
		opts.toType, _ = cmd.Flags().GetString("to-type")
		opts.fromDSN, _ = cmd.Flags().GetString("from-dsn")
		opts.toDSN, _ = cmd.Flags().GetString("to-dsn")
		opts.batchSize, _ = cmd.Flags().GetInt("batch-size")
		opts.onConflict, _ = cmd.Flags().GetString("on-conflict")

		if fromSQLite, _ := cmd.Flags().GetString("from-sqlite"); fromSQLite != "" {
			opts.fromType, opts.fromDSN = "sqlite", fromSQLite
		}
		if toPostgres, _ := cmd.Flags().GetString("to-postgres"); toPostgres != "" {
			opts.toType, opts.toDSN = "postgres", toPostgres
		}

		log, err := utils.NewLogger(false)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		return runMigration(context.Background(), opts, log)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateSchemaCmd, migrateRunCmd)

	migrateRunCmd.Flags().String("from-type", "", "Source database type (sqlite, postgres)")
	migrateRunCmd.Flags().String("to-type", "", "Target database type (sqlite, postgres)")
	migrateRunCmd.Flags().String("from-dsn", "", "Source database DSN/connection string")
	migrateRunCmd.Flags().String("to-dsn", "", "Target database DSN/connection string")
	migrateRunCmd.Flags().String("from-sqlite", "", "Source SQLite file path (shortcut)")
	migrateRunCmd.Flags().String("to-postgres", "", "Target PostgreSQL connection string (shortcut)")
	migrateRunCmd.Flags().Int("batch-size", 100, "Batch size for data migration")
	migrateRunCmd.Flags().String("on-conflict", "skip", "Conflict resolution strategy: skip (default), overwrite")
}

type migrateOptions struct {
	fromType, toType string
	fromDSN, toDSN   string
	batchSize        int
	onConflict       string
}

// migrateStats 迁移统计
type migrateStats struct {
	read    int
	written int
}

func (o migrateOptions) validate() error {
	if o.onConflict != "skip" && o.onConflict != "overwrite" {
		return fmt.Errorf("invalid on-conflict strategy: %s (must be skip or overwrite)", o.onConflict)
	}
	if o.fromType == "" || o.toType == "" {
		return errors.New("both --from-type and --to-type are required")
	}
	if o.fromDSN == "" || o.toDSN == "" {
		return errors.New("both --from-dsn and --to-dsn (or shortcuts) are required")
	}
	if o.fromType == o.toType && o.fromDSN == o.toDSN {
		return errors.New("source and target databases are the same")
	}
	return nil
}

// runMigration 执行台账迁移
func runMigration(ctx context.Context, opts migrateOptions, log *zap.SugaredLogger) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if opts.batchSize <= 0 {
		opts.batchSize = 100
	}

	log = log.Named("migrate")
	log.Infof("Migrating from %s to %s", opts.fromType, opts.toType)
	log.Infof("Source: %s", maskDSN(opts.fromDSN))
	log.Infof("Target: %s", maskDSN(opts.toDSN))

	sourceDB, err := openDatabase(opts.fromType, opts.fromDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer closeDatabase(sourceDB)

	targetDB, err := openDatabase(opts.toType, opts.toDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	defer closeDatabase(targetDB)

	stats, err := copyOrphans(ctx, sourceDB, targetDB, opts.batchSize, opts.onConflict)
	if err != nil {
		return err
	}

	log.Infof("Migration completed: %d read, %d written, %d skipped",
		stats.read, stats.written, stats.read-stats.written)
	return nil
}

// copyOrphans 分批复制孤儿记录，按 key_or_prefix 判断冲突
func copyOrphans(ctx context.Context, sourceDB, targetDB *gorm.DB, batchSize int, onConflict string) (migrateStats, error) {
	var stats migrateStats

	if err := targetDB.WithContext(ctx).AutoMigrate(&models.StorageOrphan{}); err != nil {
		return stats, fmt.Errorf("failed to migrate schema: %w", err)
	}

	conflict := clause.OnConflict{Columns: []clause.Column{{Name: "key_or_prefix"}}, DoNothing: true}
	if onConflict == "overwrite" {
		conflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "key_or_prefix"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_prefix", "reason", "attempts", "last_error", "updated_at"}),
		}
	}

	var batch []models.StorageOrphan
	res := sourceDB.WithContext(ctx).Order("id asc").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		stats.read += len(batch)
		rows := make([]models.StorageOrphan, len(batch))
		for i, o := range batch {
			o.ID = 0
			rows[i] = o
		}
		r := targetDB.WithContext(ctx).Clauses(conflict).Create(&rows)
		if r.Error != nil {
			return r.Error
		}
		stats.written += int(r.RowsAffected)
		return nil
	})
	if res.Error != nil {
		return stats, fmt.Errorf("copy storage orphans: %w", res.Error)
	}
	return stats, nil
}

// openDatabase 打开数据库连接
func openDatabase(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// maskDSN 隐藏敏感信息
func maskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:50] + "..."
	}
	return dsn
}
