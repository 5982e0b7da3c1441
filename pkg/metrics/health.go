package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Components the daemon cannot work without. /ready fails while any of
// them is unhealthy, unregistered or has not reported for staleAfter.
const (
	ComponentDriver     = "driver"
	ComponentScheduler  = "scheduler"
	ComponentSupervisor = "supervisor"
)

var criticalComponents = []string{ComponentDriver, ComponentScheduler, ComponentSupervisor}

// HealthStatus is the body of /health and /ready
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth is the last report of one component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

type healthRegistry struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
	staleAfter time.Duration
	now        func() time.Time
}

var registry = &healthRegistry{
	components: make(map[string]ComponentHealth),
	startTime:  time.Now(),
	staleAfter: 2 * time.Minute,
	now:        time.Now,
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.version = version
}

// SetStaleAfter sets how long a critical component may stay silent
// before /ready reports it. Zero disables staleness checks.
func SetStaleAfter(d time.Duration) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.staleAfter = d
}

// RegisterComponent records a component's state
func RegisterComponent(name string, healthy bool, message string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: registry.now(),
	}
}

// UpdateComponent is RegisterComponent for components that report every tick
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// GetHealth reports every registered component
func GetHealth() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	status := "healthy"
	components := make(map[string]string, len(registry.components))
	for name, comp := range registry.components {
		if comp.Healthy {
			components[name] = "healthy"
			continue
		}
		status = "unhealthy"
		components[name] = "unhealthy: " + comp.Message
	}
	return registry.status(status, "", components)
}

// GetReadiness reports the critical components only
func GetReadiness() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	now := registry.now()
	var waiting []string
	components := make(map[string]string, len(criticalComponents))
	for _, name := range criticalComponents {
		comp, ok := registry.components[name]
		switch {
		case !ok:
			components[name] = "not registered"
		case !comp.Healthy:
			components[name] = "not ready: " + comp.Message
		case registry.staleAfter > 0 && now.Sub(comp.Updated) > registry.staleAfter:
			components[name] = "stale: last report " + now.Sub(comp.Updated).Truncate(time.Second).String() + " ago"
		default:
			components[name] = "ready"
			continue
		}
		waiting = append(waiting, name)
	}

	if len(waiting) == 0 {
		return registry.status("ready", "", components)
	}
	sort.Strings(waiting)
	return registry.status("not_ready", "waiting for "+waiting[0], components)
}

// status builds a response. Callers hold r.mu.
func (r *healthRegistry) status(status, message string, components map[string]string) HealthStatus {
	return HealthStatus{
		Status:     status,
		Timestamp:  r.now(),
		Components: components,
		Message:    message,
		Version:    r.version,
		Uptime:     r.now().Sub(r.startTime).Truncate(time.Second).String(),
	}
}

// HealthHandler serves /health: 503 when any component is unhealthy
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		code := http.StatusOK
		if health.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, health)
	}
}

// ReadyHandler serves /ready: 503 until every critical component is ready
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		code := http.StatusOK
		if readiness.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, readiness)
	}
}

// LivenessHandler serves /live, which answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(registry.startTime).Truncate(time.Second).String(),
		})
	}
}

func writeStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
