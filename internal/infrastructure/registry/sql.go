package registry

import (
	"context"
	goerrors "errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/keywheel/keywheel/internal/config"
	"github.com/keywheel/keywheel/internal/domain/models"
	"github.com/keywheel/keywheel/pkg/errors"
)

// keyRecordRow is the relational shape of a key record.
type keyRecordRow struct {
	Namespace string `gorm:"primaryKey;size:255"`
	KeyID     string `gorm:"primaryKey;size:64;column:key_id"`
	PublicJWK []byte `gorm:"not null;column:public_jwk"`
	Issuer    string `gorm:"size:255;not null"`
	ExpiresOn int64  `gorm:"not null;column:expires_on"`
}

func (keyRecordRow) TableName() string { return "key_records" }

// SQLRegistry stores key records in a relational database through GORM.
type SQLRegistry struct {
	db *gorm.DB
}

// NewPostgresDB opens the configured PostgreSQL database.
func NewPostgresDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to connect to postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to access underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	return db, nil
}

// NewSQLRegistry migrates the key_records table and returns a registry over db.
func NewSQLRegistry(db *gorm.DB) (*SQLRegistry, error) {
	if err := db.AutoMigrate(&keyRecordRow{}); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to migrate key_records table")
	}
	return &SQLRegistry{db: db}, nil
}

func (r *SQLRegistry) Create(ctx context.Context, record *models.KeyRecord) error {
	row := keyRecordRow{
		Namespace: record.Namespace,
		KeyID:     record.KeyID,
		PublicJWK: record.PublicJWK,
		Issuer:    record.Issuer,
		ExpiresOn: record.ExpiresOn.Unix(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to insert key record")
	}
	return nil
}

func (r *SQLRegistry) Fetch(ctx context.Context, namespace, keyID string) (*models.KeyRecord, error) {
	var row keyRecordRow
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND key_id = ?", namespace, keyID).
		First(&row).Error
	if goerrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to query key record")
	}
	return rowToRecord(&row), nil
}

func (r *SQLRegistry) List(ctx context.Context, namespace string) ([]*models.KeyRecord, error) {
	var rows []keyRecordRow
	err := r.db.WithContext(ctx).
		Where("namespace = ?", namespace).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to list key records")
	}
	out := make([]*models.KeyRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rowToRecord(&rows[i]))
	}
	return out, nil
}

func rowToRecord(row *keyRecordRow) *models.KeyRecord {
	return &models.KeyRecord{
		Namespace: row.Namespace,
		KeyID:     row.KeyID,
		PublicJWK: row.PublicJWK,
		Issuer:    row.Issuer,
		ExpiresOn: time.Unix(row.ExpiresOn, 0).UTC(),
	}
}
