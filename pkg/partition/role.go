package partition

import "github.com/hashicorp/raft"

// Role is the controller-visible destination of a transition. Raft's own
// Leader/Follower/Candidate/Shutdown states collapse
// to these three; only a leader→non-leader or non-leader→leader edge, or
// a transition into Inactive, causes any service churn.
type Role int

const (
	// RoleUnknown is the sentinel previous-role value before the actor has
	// processed its first role change. It is never observed as a target.
	RoleUnknown Role = iota
	RoleInactive
	RoleFollower
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleFollower:
		return "follower"
	case RoleInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// rawRole is what a raft.RaftState collapses to before the previous-role
// comparison in classifyRoleChange runs.
type rawRole int

const (
	rawLeader rawRole = iota
	rawInactive
	rawOther
)

// classifyRaftState buckets every raft.RaftState into the three groups
// the collapsing rule below cares about: Leader, Inactive (raft.Shutdown),
// or anything else (Follower, Candidate — internal Raft state wiggle the
// rule exists to absorb).
func classifyRaftState(s raft.RaftState) rawRole {
	switch s {
	case raft.Leader:
		return rawLeader
	case raft.Shutdown:
		return rawInactive
	default:
		return rawOther
	}
}

// classifyRoleChange implements the role-transition collapsing rule:
//
//   - raw leader, previous role not already leader → install leader.
//   - raw inactive → always transition to inactive.
//   - anything else → install follower only if the previous role was
//     leader or unknown; candidate↔follower churn while already a
//     follower is a no-op.
//
// It returns the role the Context should record and whether a transition
// needs to run to get there.
func classifyRoleChange(previous Role, raw rawRole) (target Role, transition bool) {
	switch raw {
	case rawLeader:
		if previous == RoleLeader {
			return RoleLeader, false
		}
		return RoleLeader, true
	case rawInactive:
		return RoleInactive, true
	default:
		if previous == RoleLeader || previous == RoleUnknown {
			return RoleFollower, true
		}
		return previous, false
	}
}
