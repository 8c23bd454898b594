package controllers

import (
	"context"
	"net/http"

	"github.com/dmfellows/bidstreet-backend/api/responses"
	"github.com/dmfellows/bidstreet-backend/internal/cron"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
)

type settlementRunner interface {
	RunSweep(ctx context.Context) (cron.SweepResult, error)
}

type settlementResponse struct {
	Success    bool  `json:"success"`
	Processed  int   `json:"processed"`
	Successful int   `json:"successful"`
	Failed     int   `json:"failed"`
	DurationMS int64 `json:"durationMs"`
}

// AdminRunSettlement triggers one settlement sweep on demand. Partial
// failures are reported in the summary, not as an error status.
func AdminRunSettlement(runner settlementRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement runner unavailable"))
			return
		}

		result, err := runner.RunSweep(r.Context())
		if err != nil && result.Processed == 0 {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err != nil && logg != nil {
			logg.Warn(r.Context(), "settlement sweep finished with failures")
		}

		responses.WriteSuccess(w, settlementResponse{
			Success:    true,
			Processed:  result.Processed,
			Successful: result.Successful,
			Failed:     result.Failed,
			DurationMS: result.Duration.Milliseconds(),
		})
	}
}
