// Package launch sizes the parallel dispatch of a kernel: how many execution
// groups are started and how many lanes each group runs.
package launch

import "fmt"

// DefaultGroupSize is the number of lanes per group when none is configured.
const DefaultGroupSize = 128

// Op identifies the operation being planned. The group count depends on it.
type Op int

const (
	OpSumPool Op = iota
	OpMeanPool
	OpMaxPool
	OpMaxout
	OpBackpropSumPool
	OpBackpropMeanPool
	OpBackpropMaxPool
	OpHash
)

var opNames = [...]string{
	OpSumPool:          "sum_pool",
	OpMeanPool:         "mean_pool",
	OpMaxPool:          "max_pool",
	OpMaxout:           "maxout",
	OpBackpropSumPool:  "backprop_sum_pool",
	OpBackpropMeanPool: "backprop_mean_pool",
	OpBackpropMaxPool:  "backprop_max_pool",
	OpHash:             "hash",
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(op))
	}

	return opNames[op]
}

// Policy selects the group-count formula.
type Policy string

const (
	// PolicyUnified uses max(1, extent/groupSize) for every operation.
	PolicyUnified Policy = "unified"
	// PolicyLegacy keeps min(1, B/groupSize) for forward sum and mean pooling,
	// which yields zero groups whenever B < groupSize. See Shape.Clamp.
	PolicyLegacy Policy = "legacy"
)

// Shape is the dispatch geometry of one kernel launch.
type Shape struct {
	Groups    int
	GroupSize int
}

// Lanes is the flat number of work items started, Groups*GroupSize.
func (s Shape) Lanes() int { return s.Groups * s.GroupSize }

// Clamp returns s with at least one group when there is work to do.
// A zero-group launch over a non-empty extent would otherwise do nothing.
func (s Shape) Clamp(extent int) Shape {
	if s.Groups < 1 && extent > 0 {
		s.Groups = 1
	}

	return s
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Groups, s.GroupSize)
}

// Planner computes launch shapes for a configured group size.
type Planner struct {
	groupSize int
	policy    Policy
}

// NewPlanner returns a planner for groupSize lanes per group.
func NewPlanner(groupSize int, policy Policy) (Planner, error) {
	if groupSize < 1 {
		return Planner{}, fmt.Errorf("launch: group size must be >= 1, got %d", groupSize)
	}

	switch policy {
	case "":
		policy = PolicyUnified
	case PolicyUnified, PolicyLegacy:
	default:
		return Planner{}, fmt.Errorf("launch: unknown policy %q", policy)
	}

	return Planner{groupSize: groupSize, policy: policy}, nil
}

// GroupSize returns the configured lanes per group.
func (p Planner) GroupSize() int { return p.groupSize }

// Policy returns the configured group-count policy.
func (p Planner) Policy() Policy { return p.policy }

// WithGroupSize returns a copy of p using groupSize lanes per group.
func (p Planner) WithGroupSize(groupSize int) (Planner, error) {
	return NewPlanner(groupSize, p.policy)
}

// Plan returns the launch shape for op over extent work items. The extent is
// the batch count B for forward pooling and maxout, the total row count T for
// backward pooling and the number of keys for hashing.
//
// The shape does not guarantee Lanes() >= extent. Kernels stride over the
// extent, so any shape with at least one group covers every item.
func (p Planner) Plan(op Op, extent int) Shape {
	if extent < 0 {
		extent = 0
	}

	groups := extent / p.groupSize
	if p.policy == PolicyLegacy && (op == OpSumPool || op == OpMeanPool) {
		groups = min(1, groups)
	} else {
		groups = max(1, groups)
	}

	return Shape{Groups: groups, GroupSize: p.groupSize}
}
