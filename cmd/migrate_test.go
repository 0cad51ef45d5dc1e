package cmd

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anoixa/engi-tracker/database/models"
)

func memoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.StorageOrphan{}))
	return db
}

func TestCopyOrphans(t *testing.T) {
	tests := []struct {
		name        string
		onConflict  string
		wantWritten int
		wantReason  string
	}{
		{"skip keeps target row", "skip", 4, models.OrphanReasonAccountCleanup},
		{"overwrite replaces target row", "overwrite", 5, models.OrphanReasonAvatarOriginal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst := memoryDB(t), memoryDB(t)
			for i := range 5 {
				require.NoError(t, src.Create(&models.StorageOrphan{
					KeyOrPrefix: fmt.Sprintf("avatars/u%d/a.png", i),
					Reason:      models.OrphanReasonAvatarOriginal,
					Attempts:    i,
				}).Error)
			}
			require.NoError(t, dst.Create(&models.StorageOrphan{
				KeyOrPrefix: "avatars/u0/a.png",
				Reason:      models.OrphanReasonAccountCleanup,
			}).Error)

			stats, err := copyOrphans(context.Background(), src, dst, 2, tt.onConflict)
			require.NoError(t, err)
			assert.Equal(t, 5, stats.read)
			assert.Equal(t, tt.wantWritten, stats.written)

			var n int64
			require.NoError(t, dst.Model(&models.StorageOrphan{}).Count(&n).Error)
			assert.EqualValues(t, 5, n)

			var row models.StorageOrphan
			require.NoError(t, dst.Where("key_or_prefix = ?", "avatars/u0/a.png").First(&row).Error)
			assert.Equal(t, tt.wantReason, row.Reason)
		})
	}
}

func TestMigrateOptions_Validate(t *testing.T) {
	base := migrateOptions{fromType: "sqlite", toType: "postgres", fromDSN: "a.db", toDSN: "host=x", onConflict: "skip"}
	require.NoError(t, base.validate())

	bad := base
	bad.onConflict = "error"
	assert.Error(t, bad.validate())

	same := base
	same.toType, same.toDSN = "sqlite", "a.db"
	assert.Error(t, same.validate())

	missing := base
	missing.toDSN = ""
	assert.Error(t, missing.validate())
}
