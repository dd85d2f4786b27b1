package db

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/richd0tcom/senser/internal/domain"
)

// sensorRow is the relational identity row. The id column is the join key
// for every other store.
type sensorRow struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (sensorRow) TableName() string { return "sensors" }

// RelationalStore owns sensor identity in Postgres.
type RelationalStore struct {
	db *gorm.DB
}

func NewRelationalStore(dsn string) (*RelationalStore, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Postgres")
	}

	if err := gdb.AutoMigrate(&sensorRow{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate sensors table")
	}

	return &RelationalStore{db: gdb}, nil
}

func (s *RelationalStore) Insert(ctx context.Context, name string) (int64, error) {
	row := sensorRow{Name: name}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, errors.Wrap(err, "inserting sensor row")
	}
	return row.ID, nil
}

func (s *RelationalStore) ByID(ctx context.Context, id int64) (*domain.Identity, error) {
	var row sensorRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSensorNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying sensor row by id")
	}
	return &domain.Identity{ID: row.ID, Name: row.Name}, nil
}

func (s *RelationalStore) ByName(ctx context.Context, name string) (*domain.Identity, error) {
	var row sensorRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSensorNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying sensor row by name")
	}
	return &domain.Identity{ID: row.ID, Name: row.Name}, nil
}

func (s *RelationalStore) List(ctx context.Context, offset, limit int) ([]domain.Identity, error) {
	var rows []sensorRow
	err := s.db.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing sensor rows")
	}

	out := make([]domain.Identity, len(rows))
	for i, row := range rows {
		out[i] = domain.Identity{ID: row.ID, Name: row.Name}
	}
	return out, nil
}

func (s *RelationalStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&sensorRow{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting sensor row")
	}
	if res.RowsAffected == 0 {
		return domain.ErrSensorNotFound
	}
	return nil
}

func (s *RelationalStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&sensorRow{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "counting sensor rows")
	}
	return n, nil
}

func (s *RelationalStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
