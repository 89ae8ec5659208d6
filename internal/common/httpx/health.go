package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Health answers 200 when every check passes and 503 otherwise. Host memory
// figures are included when available.
func Health(service string, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := map[string]any{
			"service": service,
			"status":  status,
			"checks":  results,
			"time":    time.Now().UTC().Format(time.RFC3339),
		}
		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
			body["memory"] = map[string]any{
				"total_bytes":  vm.Total,
				"used_percent": vm.UsedPercent,
			}
		}
		WriteJSON(w, code, body)
	}
}
