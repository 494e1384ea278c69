package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health is the /health response body.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

// slowComponent is the latency above which a reachable component is degraded.
const slowComponent = time.Second

// HandleHealth reports the document store and the content area. 503 when
// either is down.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// HandleReady is a quick readiness check of the document store.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.cfg.Records.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "document store unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp: time.Now(),
		Version:   s.cfg.Build.Version,
		Components: map[string]ComponentHealth{
			"docstore": checkComponent(ctx, "docstore", s.cfg.Records.Ping),
			"content":  checkComponent(ctx, "content", s.cfg.Content.Ping),
		},
	}
	health.Status = determineOverallHealth(health.Components)
	return health
}

func checkComponent(ctx context.Context, name string, ping func(context.Context) error) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := ping(ctx); err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: name + " check failed: " + err.Error()}
	}
	latency := time.Since(start)

	if latency > slowComponent {
		return ComponentHealth{Status: ComponentStatusDegraded, Message: name + " latency high", LatencyMs: float64(latency.Milliseconds())}
	}
	return ComponentHealth{Status: ComponentStatusUp, Message: name + " healthy", LatencyMs: float64(latency.Milliseconds())}
}

func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var downCount, degradedCount int
	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
