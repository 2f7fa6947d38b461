package triporacle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Oracle is the authoritative trip-status check behind reconciliation.
type Oracle interface {
	IsDriverOnTrip(ctx context.Context, driverID string) bool
}

// HTTPOracle asks the trip service whether a driver has an in-progress trip.
type HTTPOracle struct {
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewHTTPOracle(baseURL string, logger *slog.Logger) *HTTPOracle {
	return &HTTPOracle{BaseURL: baseURL, Client: &http.Client{Timeout: 2 * time.Second}, Logger: logger}
}

// IsDriverOnTrip returns the upstream answer, or true when the upstream
// cannot be reached. A false "available" risks double-assignment; a missed
// reclaim only delays the next reconciliation sweep.
func (o *HTTPOracle) IsDriverOnTrip(ctx context.Context, driverID string) bool {
	url := fmt.Sprintf("%s/internal/drivers/%s/in-progress", o.BaseURL, driverID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return true
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		o.Logger.Warn("trip status check failed, assuming on trip", "driver_id", driverID, "error", err)
		return true
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		o.Logger.Warn("trip status non-200, assuming on trip", "driver_id", driverID, "status", resp.StatusCode)
		return true
	}
	var onTrip bool
	if err := json.NewDecoder(resp.Body).Decode(&onTrip); err != nil {
		o.Logger.Warn("trip status decode failed, assuming on trip", "driver_id", driverID, "error", err)
		return true
	}
	return onTrip
}
