package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"gravecare-api/utils"
)

// HealthController reports liveness and, when Check is set, store reachability
type HealthController struct {
	Check   func(ctx context.Context) error
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// Health answers 200 {"status":"ok"} or 503 {"status":"unavailable"}
func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if hc.Check != nil {
		timeout := hc.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := hc.Check(ctx); err != nil {
			utils.LoggerFrom(r.Context(), hc.Log).WithError(err).Warn("health check failed")
			utils.JSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	utils.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
