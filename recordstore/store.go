// Package recordstore persists recorded driving takes so they survive restarts and can
// be replayed by name.
package recordstore

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/owatonnarobotics/2021-Robot-sub000/recorder"
)

// ErrNotFound is returned when no recording has the requested name.
var ErrNotFound = errors.New("recording not found")

// Recording is one named take.
type Recording struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	Samples   []RecordingSample
}

// RecordingSample is one tick of a take.
type RecordingSample struct {
	ID          uint `gorm:"primaryKey"`
	RecordingID uint `gorm:"index;not null"`
	Index       int  `gorm:"column:sample_index;not null"`
	X           float64
	Y           float64
	Z           float64
	Flags       uint32
}

// Summary describes a stored recording without its samples.
type Summary struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Samples   int       `json:"samples"`
}

// Store is a sqlite backed recording store.
type Store struct {
	db     *gorm.DB
	logger logging.Logger
}

// Open opens or creates the store at path. An empty path keeps everything in memory.
func Open(path string, logger logging.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening recording store %q", path)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Recording{}, &RecordingSample{}); err != nil {
		return nil, errors.Wrap(err, "migrating recording store")
	}
	if path == "" {
		logger.Info("using in-memory recording store")
	} else {
		logger.Infow("using recording store", "path", path)
	}
	return &Store{db: db, logger: logger}, nil
}

// Save stores samples under name, replacing any recording with the same name.
func (s *Store) Save(ctx context.Context, name string, samples []recorder.Sample) error {
	if name == "" {
		return errors.New("recording name is required")
	}
	rec := Recording{Name: name, Samples: make([]RecordingSample, len(samples))}
	for i, sample := range samples {
		rec.Samples[i] = RecordingSample{
			Index: i,
			X:     sample.X,
			Y:     sample.Y,
			Z:     sample.Z,
			Flags: uint32(sample.Flags),
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteByName(tx, name); err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return errors.Wrapf(err, "saving recording %q", name)
	}
	s.logger.Infow("recording saved", "name", name, "samples", len(samples))
	return nil
}

// Load returns the samples of the named recording in order.
func (s *Store) Load(ctx context.Context, name string) ([]recorder.Sample, error) {
	var rec Recording
	err := s.db.WithContext(ctx).
		Preload("Samples", func(db *gorm.DB) *gorm.DB { return db.Order("sample_index") }).
		Where("name = ?", name).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading recording %q", name)
	}
	out := make([]recorder.Sample, len(rec.Samples))
	for i, rs := range rec.Samples {
		out[i] = recorder.Sample{X: rs.X, Y: rs.Y, Z: rs.Z, Flags: recorder.Flags(rs.Flags)}
	}
	return out, nil
}

// List returns every recording ordered by name.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	db := s.db.WithContext(ctx)
	var recs []Recording
	if err := db.Order("name").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "listing recordings")
	}
	var counts []struct {
		RecordingID uint
		N           int
	}
	err := db.Model(&RecordingSample{}).
		Select("recording_id, COUNT(*) AS n").
		Group("recording_id").
		Scan(&counts).Error
	if err != nil {
		return nil, errors.Wrap(err, "counting recording samples")
	}
	byID := make(map[uint]int, len(counts))
	for _, c := range counts {
		byID[c.RecordingID] = c.N
	}
	out := make([]Summary, len(recs))
	for i, rec := range recs {
		out[i] = Summary{Name: rec.Name, CreatedAt: rec.CreatedAt, Samples: byID[rec.ID]}
	}
	return out, nil
}

// Delete removes the named recording.
func (s *Store) Delete(ctx context.Context, name string) error {
	var found bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Recording
		err := tx.Where("name = ?", name).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return deleteByName(tx, name)
	})
	if err != nil {
		return errors.Wrapf(err, "deleting recording %q", name)
	}
	if !found {
		return errors.Wrap(ErrNotFound, name)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func deleteByName(tx *gorm.DB, name string) error {
	var ids []uint
	if err := tx.Model(&Recording{}).Where("name = ?", name).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("recording_id IN ?", ids).Delete(&RecordingSample{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&Recording{}).Error
}
