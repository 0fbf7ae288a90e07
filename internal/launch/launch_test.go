package launch

import "testing"

func mustPlanner(t *testing.T, groupSize int, policy Policy) Planner {
	t.Helper()

	p, err := NewPlanner(groupSize, policy)
	if err != nil {
		t.Fatalf("NewPlanner(%d, %q): %v", groupSize, policy, err)
	}

	return p
}

func TestPlanUnified(t *testing.T) {
	p := mustPlanner(t, 128, PolicyUnified)

	tests := []struct {
		extent int
		want   int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 1},
		{129, 1},
		{255, 1},
		{256, 2},
		{300, 2},
		{10000, 78},
	}

	for _, op := range []Op{OpSumPool, OpMeanPool, OpMaxPool, OpMaxout, OpBackpropSumPool, OpBackpropMeanPool, OpBackpropMaxPool, OpHash} {
		for _, tt := range tests {
			got := p.Plan(op, tt.extent)
			if got.Groups != tt.want || got.GroupSize != 128 {
				t.Errorf("%s: Plan(%d) = %v; want %dx128", op, tt.extent, got, tt.want)
			}
		}
	}
}

func TestPlanLegacyForwardSum(t *testing.T) {
	p := mustPlanner(t, 128, PolicyLegacy)

	tests := []struct {
		extent int
		want   int
	}{
		{0, 0},
		{4, 0},
		{127, 0},
		{128, 1},
		{300, 1},
		{10000, 1},
	}

	for _, op := range []Op{OpSumPool, OpMeanPool} {
		for _, tt := range tests {
			if got := p.Plan(op, tt.extent); got.Groups != tt.want {
				t.Errorf("%s: Plan(%d).Groups = %d; want %d", op, tt.extent, got.Groups, tt.want)
			}
		}
	}

	// Every other operation keeps the max policy.
	for _, op := range []Op{OpMaxPool, OpMaxout, OpBackpropSumPool, OpBackpropMeanPool, OpBackpropMaxPool, OpHash} {
		if got := p.Plan(op, 4); got.Groups != 1 {
			t.Errorf("%s: Plan(4).Groups = %d; want 1", op, got.Groups)
		}
		if got := p.Plan(op, 10000); got.Groups != 78 {
			t.Errorf("%s: Plan(10000).Groups = %d; want 78", op, got.Groups)
		}
	}
}

func TestPlanNeverCoversNonMultipleExtent(t *testing.T) {
	// 300 items at 128 lanes per group: 2 groups, 256 lanes. The remaining 44
	// items must be picked up by lanes striding past the first pass.
	p := mustPlanner(t, 128, PolicyUnified)
	s := p.Plan(OpMaxPool, 300)
	if s.Lanes() >= 300 {
		t.Fatalf("Lanes() = %d; expected fewer lanes than items for this case", s.Lanes())
	}
}

func TestShapeClamp(t *testing.T) {
	s := Shape{Groups: 0, GroupSize: 128}

	if got := s.Clamp(0); got.Groups != 0 {
		t.Errorf("Clamp(0).Groups = %d; want 0", got.Groups)
	}
	if got := s.Clamp(5); got.Groups != 1 {
		t.Errorf("Clamp(5).Groups = %d; want 1", got.Groups)
	}
	if got := (Shape{Groups: 3, GroupSize: 8}).Clamp(5); got.Groups != 3 {
		t.Errorf("Clamp kept %d groups; want 3", got.Groups)
	}
}

func TestNewPlannerRejectsBadInput(t *testing.T) {
	if _, err := NewPlanner(0, PolicyUnified); err == nil {
		t.Error("NewPlanner(0) = nil error; want error")
	}
	if _, err := NewPlanner(128, "widest"); err == nil {
		t.Error("NewPlanner(policy=widest) = nil error; want error")
	}

	p, err := NewPlanner(32, "")
	if err != nil {
		t.Fatalf("NewPlanner(32, \"\"): %v", err)
	}
	if p.Policy() != PolicyUnified {
		t.Errorf("Policy() = %q; want %q", p.Policy(), PolicyUnified)
	}
}

func TestWithGroupSize(t *testing.T) {
	p := mustPlanner(t, 128, PolicyLegacy)

	q, err := p.WithGroupSize(4)
	if err != nil {
		t.Fatalf("WithGroupSize(4): %v", err)
	}
	if q.GroupSize() != 4 || q.Policy() != PolicyLegacy {
		t.Errorf("WithGroupSize(4) = %d/%s; want 4/legacy", q.GroupSize(), q.Policy())
	}
	if got := q.Plan(OpSumPool, 9); got.Groups != 1 {
		t.Errorf("legacy Plan(sum, 9) at group 4 = %d groups; want 1", got.Groups)
	}
	if p.GroupSize() != 128 {
		t.Errorf("original planner changed to %d", p.GroupSize())
	}

	if _, err := p.WithGroupSize(-1); err == nil {
		t.Error("WithGroupSize(-1) = nil error; want error")
	}
}

func TestOpString(t *testing.T) {
	if OpBackpropMaxPool.String() != "backprop_max_pool" {
		t.Errorf("String() = %q", OpBackpropMaxPool.String())
	}
	if Op(99).String() != "Op(99)" {
		t.Errorf("String() = %q", Op(99).String())
	}
}
