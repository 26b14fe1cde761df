package scriptcore

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics_RegistersWithoutPanicking(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	if m == nil {
		t.Fatalf("NewMetrics returned nil")
	}

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected at least one registered metric family")
	}
}

func TestMetrics_NilReceiverMethodsAreNoops(t *testing.T) {
	var m *Metrics
	// None of these should panic on a nil *Metrics, since every call site
	// in the core treats metrics as optional.
	m.recordModuleLoad("success", 1.0)
	m.recordDispatch(PhaseMain)
	m.recordDrain(3)
	m.recordScriptCallError("update")
}
