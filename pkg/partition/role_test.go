package partition

import (
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
)

func TestClassifyRaftState(t *testing.T) {
	cases := []struct {
		state raft.RaftState
		want  rawRole
	}{
		{raft.Leader, rawLeader},
		{raft.Shutdown, rawInactive},
		{raft.Follower, rawOther},
		{raft.Candidate, rawOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classifyRaftState(c.state))
	}
}

func TestClassifyRoleChange(t *testing.T) {
	cases := []struct {
		name       string
		previous   Role
		raw        rawRole
		wantTarget Role
		wantTrans  bool
	}{
		{"leader from unknown", RoleUnknown, rawLeader, RoleLeader, true},
		{"leader from follower", RoleFollower, rawLeader, RoleLeader, true},
		{"leader already leader", RoleLeader, rawLeader, RoleLeader, false},
		{"inactive always transitions", RoleLeader, rawInactive, RoleInactive, true},
		{"inactive from unknown", RoleUnknown, rawInactive, RoleInactive, true},
		{"follower from leader", RoleLeader, rawOther, RoleFollower, true},
		{"follower from unknown", RoleUnknown, rawOther, RoleFollower, true},
		{"candidate churn while follower is a no-op", RoleFollower, rawOther, RoleFollower, false},
		{"churn while inactive is a no-op", RoleInactive, rawOther, RoleInactive, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			target, transition := classifyRoleChange(c.previous, c.raw)
			assert.Equal(t, c.wantTarget, target)
			assert.Equal(t, c.wantTrans, transition)
		})
	}
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "leader", RoleLeader.String())
	assert.Equal(t, "follower", RoleFollower.String())
	assert.Equal(t, "inactive", RoleInactive.String())
	assert.Equal(t, "unknown", RoleUnknown.String())
}
