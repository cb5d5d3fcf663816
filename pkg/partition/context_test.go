package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContext_DefaultsToAvailableAndUnknown(t *testing.T) {
	c := newContext(Identity{NodeID: "n1", PartitionID: 2})

	assert.Equal(t, RoleUnknown, c.Role)
	assert.True(t, c.DiskSpaceAvailable)
	assert.False(t, c.ProcessingPaused)
	assert.False(t, c.ServicesInstalled)
}

func TestContext_ShouldProcess(t *testing.T) {
	cases := []struct {
		name        string
		diskAvail   bool
		paused      bool
		wantProcess bool
	}{
		{"available and not paused", true, false, true},
		{"available but paused", true, true, false},
		{"unavailable and not paused", false, false, false},
		{"unavailable and paused", false, true, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := &Context{DiskSpaceAvailable: c.diskAvail, ProcessingPaused: c.paused}
			assert.Equal(t, c.wantProcess, ctx.shouldProcess())
		})
	}
}
