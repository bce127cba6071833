package main

import (
	"context"
	"fmt"

	"tomgalvin.uk/labelle/internal/calibration"
	"tomgalvin.uk/labelle/internal/device"
)

// openCalibrations loads the calibration store backed by the sqlite file
// named in the config. The caller closes the repository.
func openCalibrations(ctx context.Context, path string, registry *device.Registry) (*calibration.Store, *calibration.SQLiteRepository, error) {
	repo := calibration.NewSQLiteRepository(path)
	store, err := calibration.NewStore(ctx, repo, calibration.Hardcoded(registry))
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("Couldn't open calibrations:\n%w", err)
	}
	return store, repo, nil
}
