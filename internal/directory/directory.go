package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/dispatch/internal/models"
)

// Directory resolves driver profiles; only the score-based selection policy
// consults it.
type Directory interface {
	GetDriversInfo(ctx context.Context, ids []string) ([]models.DriverInfo, error)
}

// HTTPDirectory fetches profiles from the driver service, one id at a time
// like the upstream internal API exposes them.
type HTTPDirectory struct {
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewHTTPDirectory(baseURL string, logger *slog.Logger) *HTTPDirectory {
	return &HTTPDirectory{BaseURL: baseURL, Client: &http.Client{Timeout: 2 * time.Second}, Logger: logger}
}

// GetDriversInfo returns the profiles it could resolve; individual failures
// drop the profile rather than failing the batch.
func (d *HTTPDirectory) GetDriversInfo(ctx context.Context, ids []string) ([]models.DriverInfo, error) {
	out := make([]models.DriverInfo, 0, len(ids))
	for _, id := range ids {
		info, err := d.getDriverInfo(ctx, id)
		if err != nil {
			d.Logger.Warn("driver profile fetch failed", "driver_id", id, "error", err)
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func (d *HTTPDirectory) getDriverInfo(ctx context.Context, id string) (models.DriverInfo, error) {
	url := fmt.Sprintf("%s/internal/api/drivers/%s", d.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.DriverInfo{}, err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return models.DriverInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.DriverInfo{}, fmt.Errorf("driver service status %d", resp.StatusCode)
	}
	var info models.DriverInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.DriverInfo{}, err
	}
	return info, nil
}
