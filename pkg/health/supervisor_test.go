package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingListener struct {
	failures  int
	recovered int
}

func (r *recordingListener) OnFailure()   { r.failures++ }
func (r *recordingListener) OnRecovered() { r.recovered++ }

func TestSupervisor_AggregateUnhealthyIfAnyChild(t *testing.T) {
	tests := []struct {
		name     string
		statuses []bool // healthy per child
		want     AggregateStatus
	}{
		{"all healthy", []bool{true, true, true}, Healthy},
		{"one unhealthy", []bool{true, false, true}, Unhealthy},
		{"all unhealthy", []bool{false, false}, Unhealthy},
		{"no children", nil, Healthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sup := NewSupervisor("node-1", 3)
			for i, healthy := range tt.statuses {
				sup.Register(string(rune('a'+i)), NewManualProbe(healthy))
			}
			assert.Equal(t, tt.want, sup.Status())
		})
	}
}

func TestSupervisor_NotifiesOnAggregateTransition(t *testing.T) {
	sup := NewSupervisor("node-1", 1)
	listener := &recordingListener{}
	sup.Subscribe(listener)

	a := NewManualProbe(true)
	b := NewManualProbe(true)
	sup.Register("a", a)
	sup.Register("b", b)

	assert.Equal(t, Healthy, sup.Status())
	assert.Equal(t, 0, listener.failures)

	a.SetHealthy(false)
	assert.Equal(t, Unhealthy, sup.Status())
	assert.Equal(t, 1, listener.failures)

	// A second child going unhealthy must not re-fire OnFailure: the
	// aggregate was already unhealthy.
	b.SetHealthy(false)
	assert.Equal(t, 1, listener.failures)

	b.SetHealthy(true)
	assert.Equal(t, 1, listener.failures, "aggregate still unhealthy because a is unhealthy")

	a.SetHealthy(true)
	assert.Equal(t, 1, listener.recovered)
}

func TestSupervisor_DeregisterDropsContribution(t *testing.T) {
	sup := NewSupervisor("node-1", 1)
	bad := NewManualProbe(false)
	sup.Register("bad", bad)
	assert.Equal(t, Unhealthy, sup.Status())

	sup.Deregister("bad")
	assert.Equal(t, Healthy, sup.Status())

	// The probe going unhealthy again after deregistration must not
	// resurrect the supervisor's view of it.
	bad.SetHealthy(true)
	bad.SetHealthy(false)
	assert.Equal(t, Healthy, sup.Status())
}

func TestSupervisor_NestsAsComponent(t *testing.T) {
	inner := NewSupervisor("node-1", 1)
	outer := NewSupervisor("node-1", 2)
	outer.Register("inner", inner)

	assert.Equal(t, Healthy, outer.Status())

	probe := NewManualProbe(true)
	inner.Register("probe", probe)
	probe.SetHealthy(false)

	assert.Equal(t, Unhealthy, inner.Status())
	assert.Equal(t, Unhealthy, outer.Status())
}

func TestManualProbe_SetHealthyIsIdempotent(t *testing.T) {
	p := NewManualProbe(true)
	listener := &recordingListener{}
	p.Subscribe(listener)

	p.SetHealthy(true)
	assert.Equal(t, 0, listener.failures)
	assert.Equal(t, 0, listener.recovered)

	p.SetHealthy(false)
	p.SetHealthy(false)
	assert.Equal(t, 1, listener.failures)
}
