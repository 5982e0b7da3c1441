package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/fleet/fleettest"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorSamplesFleet(t *testing.T) {
	resetHealth(t)

	d := fleettest.New().
		SetCost("weaken", 2).
		AddNode(types.NodeRecord{ID: "home", TotalCapacity: 64, Ownership: types.OwnershipLocal, Rooted: true}).
		AddNode(types.NodeRecord{ID: "n00dles", TotalCapacity: 16, Ownership: types.OwnershipExternal, Rooted: true}).
		AddProcess("n00dles", types.Process{Operation: "weaken", Args: []string{"joesguns"}, Replicas: 3})

	c := NewCollector(d, time.Minute)
	c.Collect(context.Background())

	assert.Equal(t, 2.0, testutil.ToFloat64(FleetNodes))
	assert.Equal(t, 80.0, testutil.ToFloat64(FleetCapacity.WithLabelValues("total")))
	assert.Equal(t, 6.0, testutil.ToFloat64(FleetCapacity.WithLabelValues("used")))
	assert.Equal(t, 3.0, testutil.ToFloat64(RunningReplicas.WithLabelValues("weaken")))
	assert.True(t, registry.components["driver"].Healthy)
}

func TestCollectorReportsDriverFailure(t *testing.T) {
	resetHealth(t)

	d := fleettest.New()
	d.NodesErr = errors.New("scan failed")

	NewCollector(d, 0).Collect(context.Background())

	comp := registry.components["driver"]
	assert.False(t, comp.Healthy)
	assert.Contains(t, comp.Message, "scan failed")
}

func TestServerRoutes(t *testing.T) {
	resetHealth(t)
	RegisterComponent(ComponentDriver, true, "")
	RegisterComponent(ComponentScheduler, true, "")
	RegisterComponent(ComponentSupervisor, true, "")

	h := NewServer(":0").Handler()

	for _, path := range []string{"/metrics", "/health", "/ready", "/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
