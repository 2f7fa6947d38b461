package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/dispatch/internal/models"
)

// Finder answers "which drivers are within radius R of point P".
type Finder interface {
	FindNearbyDrivers(ctx context.Context, origin models.GeoPoint, radiusKm int) ([]models.CandidateDriver, error)
}

// HTTPFinder queries the location service's radius search endpoint.
type HTTPFinder struct {
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewHTTPFinder(baseURL string, logger *slog.Logger) *HTTPFinder {
	return &HTTPFinder{BaseURL: baseURL, Client: &http.Client{Timeout: 2 * time.Second}, Logger: logger}
}

// FindNearbyDrivers returns the drivers within radiusKm of origin. Transport
// or decode failures degrade to an empty candidate list: the search is
// fail-closed per tier and never fatal to a match attempt.
func (f *HTTPFinder) FindNearbyDrivers(ctx context.Context, origin models.GeoPoint, radiusKm int) ([]models.CandidateDriver, error) {
	url := fmt.Sprintf("%s/api/locations/search?longitude=%.6f&latitude=%.6f&radius=%d",
		f.BaseURL, origin.Longitude, origin.Latitude, radiusKm)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		f.Logger.Warn("location search failed", "radius_km", radiusKm, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		f.Logger.Warn("location search non-200", "radius_km", radiusKm, "status", resp.StatusCode)
		return nil, nil
	}
	var out []models.CandidateDriver
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		f.Logger.Warn("location search decode failed", "error", err)
		return nil, nil
	}
	return out, nil
}
