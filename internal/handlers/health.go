package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studyhall/internal/monitoring"
	"github.com/charlesng35/studyhall/internal/realtime"
	"github.com/charlesng35/studyhall/pkg/response"
)

// Health runs the readiness probes and reports the number of open realtime connections.
// A down dependency returns 503 so load balancers take the instance out; degraded
// dependencies still answer 200.
func Health(checker *monitoring.Checker, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := monitoring.HealthReport{Status: monitoring.StatusUp}
		if checker != nil {
			report = checker.Evaluate(requestContext(c))
		}

		payload := gin.H{
			"status": report.Status,
			"checks": report.Checks,
		}
		if hub != nil {
			payload["connections"] = hub.ConnectionCount()
		}

		status := http.StatusOK
		if report.Down() {
			status = http.StatusServiceUnavailable
		}
		response.Success(c, status, payload)
	}
}

// Live answers as long as the process serves HTTP.
func Live(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": monitoring.StatusUp})
}
