package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetHealth installs a fresh registry with a controllable clock
func resetHealth(t *testing.T) *time.Time {
	t.Helper()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	registry = &healthRegistry{
		components: make(map[string]ComponentHealth),
		startTime:  now,
		staleAfter: time.Minute,
		now:        func() time.Time { return now },
	}
	return &now
}

func registerCritical() {
	RegisterComponent(ComponentDriver, true, "")
	RegisterComponent(ComponentScheduler, true, "")
	RegisterComponent(ComponentSupervisor, true, "")
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		setup      func()
		status     string
		components map[string]string
	}{
		{
			name:   "all healthy",
			setup:  registerCritical,
			status: "healthy",
			components: map[string]string{
				ComponentDriver:     "healthy",
				ComponentScheduler:  "healthy",
				ComponentSupervisor: "healthy",
			},
		},
		{
			name: "one unhealthy",
			setup: func() {
				RegisterComponent(ComponentSupervisor, true, "")
				UpdateComponent(ComponentDriver, false, "snapshot unavailable")
			},
			status: "unhealthy",
			components: map[string]string{
				ComponentSupervisor: "healthy",
				ComponentDriver:     "unhealthy: snapshot unavailable",
			},
		},
		{
			name:       "nothing registered",
			setup:      func() {},
			status:     "healthy",
			components: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			SetVersion("1.0.0")
			tt.setup()

			health := GetHealth()
			assert.Equal(t, tt.status, health.Status)
			assert.Equal(t, tt.components, health.Components)
			assert.Equal(t, "1.0.0", health.Version)
		})
	}
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(now *time.Time)
		status  string
		message string
		driver  string
	}{
		{
			name:   "all ready",
			setup:  func(*time.Time) { registerCritical() },
			status: "ready",
			driver: "ready",
		},
		{
			name: "missing critical component",
			setup: func(*time.Time) {
				RegisterComponent(ComponentScheduler, true, "")
				RegisterComponent(ComponentSupervisor, true, "")
			},
			status:  "not_ready",
			message: "waiting for driver",
			driver:  "not registered",
		},
		{
			name: "critical component unhealthy",
			setup: func(*time.Time) {
				registerCritical()
				UpdateComponent(ComponentDriver, false, "scan failed")
			},
			status:  "not_ready",
			message: "waiting for driver",
			driver:  "not ready: scan failed",
		},
		{
			name: "critical component stale",
			setup: func(now *time.Time) {
				registerCritical()
				*now = now.Add(90 * time.Second)
				RegisterComponent(ComponentScheduler, true, "")
				RegisterComponent(ComponentSupervisor, true, "")
			},
			status:  "not_ready",
			message: "waiting for driver",
			driver:  "stale: last report 1m30s ago",
		},
		{
			name: "non-critical components are ignored",
			setup: func(*time.Time) {
				registerCritical()
				RegisterComponent("collector", false, "slow")
			},
			status: "ready",
			driver: "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := resetHealth(t)
			tt.setup(now)

			readiness := GetReadiness()
			assert.Equal(t, tt.status, readiness.Status)
			assert.Equal(t, tt.message, readiness.Message)
			assert.Equal(t, tt.driver, readiness.Components[ComponentDriver])
			assert.Len(t, readiness.Components, 3)
		})
	}
}

func TestStalenessCanBeDisabled(t *testing.T) {
	now := resetHealth(t)
	SetStaleAfter(0)
	registerCritical()
	*now = now.Add(24 * time.Hour)

	assert.Equal(t, "ready", GetReadiness().Status)
}

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		setup   func()
		code    int
		status  string
	}{
		{name: "health ok", handler: HealthHandler(), setup: registerCritical, code: http.StatusOK, status: "healthy"},
		{
			name:    "health failing",
			handler: HealthHandler(),
			setup:   func() { RegisterComponent(ComponentDriver, false, "down") },
			code:    http.StatusServiceUnavailable,
			status:  "unhealthy",
		},
		{name: "ready ok", handler: ReadyHandler(), setup: registerCritical, code: http.StatusOK, status: "ready"},
		{name: "ready failing", handler: ReadyHandler(), setup: func() {}, code: http.StatusServiceUnavailable, status: "not_ready"},
		{name: "live", handler: LivenessHandler(), setup: func() {}, code: http.StatusOK, status: "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			tt.setup()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()
			tt.handler(w, req)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}
