package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"statsdb/models"
)

// MachineConfigRepository resolves client fingerprints to machine configs
type MachineConfigRepository struct {
	db *Database

	// fingerprint -> machine config ID
	ids *ristretto.Cache[string, uint]

	now func() time.Time
}

// NewMachineConfigRepository creates a repository remembering up to
// cacheSize fingerprints in memory
func NewMachineConfigRepository(db *Database, cacheSize int64) (*MachineConfigRepository, error) {

	if cacheSize <= 0 {
		cacheSize = 100000
	}

	ids, err := ristretto.NewCache(&ristretto.Config[string, uint]{

		NumCounters: cacheSize * 10,

		MaxCost: cacheSize,

		BufferItems: 64,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to initialize fingerprint cache: %w", err)
	}

	return &MachineConfigRepository{db: db, ids: ids, now: time.Now}, nil
}

// Close stops the cache goroutines
func (r *MachineConfigRepository) Close() {
	r.ids.Close()
}

// Resolve returns the machine config for info's fingerprint, creating it when
// it has never been seen. Racing first sightings converge on one row through
// the unique fingerprint index.
func (r *MachineConfigRepository) Resolve(ctx context.Context, info models.UserInfo, remoteAddr string) (*models.MachineConfig, bool, error) {

	now := r.now().UTC()

	candidate, err := info.MachineConfig(remoteAddr, now)

	if err != nil {
		return nil, false, err
	}

	db := r.db.WithContext(ctx)

	mc, err := r.lookup(db, info.Fingerprint)

	if err != nil {
		return nil, false, err
	}

	if mc != nil {

		if err := db.Model(mc).UpdateColumn("last_seen", now).Error; err != nil {
			return nil, false, fmt.Errorf("failed to update last seen: %w", err)
		}

		return mc, false, nil
	}

	result := db.Clauses(clause.OnConflict{

		Columns: []clause.Column{{Name: "fingerprint"}},

		DoNothing: true,
	}).Create(candidate)

	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create machine config: %w", result.Error)
	}

	if result.RowsAffected == 0 {

		// another request created it between our lookup and insert
		mc, err = r.lookup(db, info.Fingerprint)

		if err != nil {
			return nil, false, err
		}

		if mc == nil {
			return nil, false, fmt.Errorf("machine config %q vanished after conflict", info.Fingerprint)
		}

		return mc, false, nil
	}

	r.ids.Set(candidate.Fingerprint, candidate.ID, 1)

	r.db.log.Info("new machine config",

		zap.Uint("id", candidate.ID),

		zap.String("os", candidate.OS),

		zap.String("version", candidate.Version),
	)

	return candidate, true, nil
}

// lookup returns nil without error when the fingerprint is unknown
func (r *MachineConfigRepository) lookup(db *gorm.DB, fingerprint string) (*models.MachineConfig, error) {

	mc := &models.MachineConfig{}

	if id, ok := r.ids.Get(fingerprint); ok {

		err := db.First(mc, id).Error

		if err == nil {
			return mc, nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load machine config %d: %w", id, err)
		}

		r.ids.Del(fingerprint)
	}

	err := db.Where("fingerprint = ?", fingerprint).First(mc).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to look up machine config: %w", err)
	}

	r.ids.Set(fingerprint, mc.ID, 1)

	return mc, nil
}
