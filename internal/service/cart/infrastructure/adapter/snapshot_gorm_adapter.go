package adapter

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartSnapshotModel 对应数据库中的 cart_snapshots 表
type CartSnapshotModel struct {
	StorageKey string `gorm:"primaryKey;type:varchar(191)"`
	Payload    string `gorm:"type:mediumtext;not null"`
	UpdatedAt  time.Time
}

// TableName 指定 GORM 应该使用的表名
func (CartSnapshotModel) TableName() string {
	return "cart_snapshots"
}

// SnapshotGormAdapter 是 port.SnapshotStore 的 GORM 实现
type SnapshotGormAdapter struct {
	db *gorm.DB
}

// NewSnapshotGormAdapter 创建仓储并确保表结构存在
func NewSnapshotGormAdapter(db *gorm.DB) (*SnapshotGormAdapter, error) {
	if err := db.AutoMigrate(&CartSnapshotModel{}); err != nil {
		return nil, pkgerrors.Wrap(err, "migrate cart_snapshots")
	}
	return &SnapshotGormAdapter{db: db}, nil
}

func (a *SnapshotGormAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	var model CartSnapshotModel
	err := a.db.WithContext(ctx).Where("storage_key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrapf(err, "load snapshot %s", key)
	}
	return model.Payload, true, nil
}

// Set 整体覆盖写入，key 不存在时插入
func (a *SnapshotGormAdapter) Set(ctx context.Context, key, value string) error {
	model := CartSnapshotModel{StorageKey: key, Payload: value, UpdatedAt: time.Now()}
	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return pkgerrors.Wrapf(err, "save snapshot %s", key)
	}
	return nil
}
