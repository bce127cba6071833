// Package model maps registry and store values onto the HTTP API bodies.
package model

import (
	"fmt"

	"tomgalvin.uk/labelle/api"
	"tomgalvin.uk/labelle/internal/calibration"
	"tomgalvin.uk/labelle/internal/device"
)

func FromProfile(p device.Profile) api.Device {
	r := api.Device{
		Model:        p.Model,
		Name:         p.Name,
		HeadHeightPx: p.HeadHeightPx,
		Variant:      string(p.Variant),
		Transport:    string(p.Transport),
		TapeSizesMm:  p.TapeSizesMm,
		Confirmed:    p.Confirmed,
	}
	if p.Transport == device.TransportUSB {
		vendor := fmt.Sprintf("%04x", p.VendorID)
		product := fmt.Sprintf("%04x", p.ProductID)
		r.VendorId, r.ProductId = &vendor, &product
	}
	return r
}

func FromProfiles(profiles []device.Profile) []api.Device {
	out := make([]api.Device, len(profiles))
	for i, p := range profiles {
		out[i] = FromProfile(p)
	}
	return out
}

func FromCalibration(c calibration.TapeCalibration) api.Calibration {
	return api.Calibration{
		Model:          c.Model,
		TapeMm:         c.TapeMm,
		OffsetPx:       c.OffsetPx,
		CanvasHeightPx: c.CanvasHeightPx,
		Source:         string(c.Source),
	}
}

func FromCalibrations(entries []calibration.TapeCalibration) []api.Calibration {
	out := make([]api.Calibration, len(entries))
	for i, c := range entries {
		out[i] = FromCalibration(c)
	}
	return out
}

// FromError is the body for err. Hint and Retryable are left out when they
// don't apply.
func FromError(err error, hint string, retryable bool) api.ErrorResponse {
	r := api.ErrorResponse{Error: err.Error()}
	if hint != "" {
		r.Hint = &hint
	}
	if retryable {
		r.Retryable = &retryable
	}
	return r
}
