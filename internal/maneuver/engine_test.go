package maneuver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testPilot struct {
	trail []string
}

type step struct {
	Base
	label string
	err   error
}

func (s *step) Name() string { return s.label }

func (s *step) Attempt(ctx context.Context, p *testPilot, f *Flight[*testPilot]) error {
	p.trail = append(p.trail, s.label)
	return s.err
}

type number struct {
	Base
	Ordnance[int]
	value int
	skip  bool
}

func (n *number) Attempt(ctx context.Context, p *testPilot, f *Flight[*testPilot]) error {
	if !n.skip {
		n.Load(n.value)
	}
	return nil
}

type sum struct {
	Base
	Ordnance[int]
	parts []int
}

func (s *sum) Attempt(ctx context.Context, p *testPilot, f *Flight[*testPilot]) error {
	total := 0
	for _, v := range s.parts {
		n, err := Deploy[*testPilot, int](ctx, f, &number{value: v})
		if err != nil {
			return err
		}
		total += n
	}
	s.Load(total)
	return nil
}

func TestFlySequentialOrder(t *testing.T) {
	p := &testPilot{}
	root := NewSequence[*testPilot](
		&step{label: "sign-in"},
		NewSequence[*testPilot](&step{label: "navigate"}, &step{label: "scrape"}),
		&step{label: "deliver"},
	)
	if err := NewEngine[*testPilot]().Fly(context.Background(), p, root); err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	expected := []string{"sign-in", "navigate", "scrape", "deliver"}
	if diff := cmp.Diff(expected, p.trail); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if root.State() != Succeeded {
		t.Fatalf("expected state succeeded but got %s", root.State())
	}
}

func TestOrdnanceFlowsToParent(t *testing.T) {
	s := &sum{parts: []int{1, 2, 39}}
	if err := NewEngine[*testPilot]().Fly(context.Background(), &testPilot{}, s); err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	v, err := s.Deploy()
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42 but got %d", v)
	}
}

func TestMissingOrdnance(t *testing.T) {
	n := &number{skip: true}
	err := NewEngine[*testPilot]().Fly(context.Background(), &testPilot{}, n)
	if !errors.Is(err, ErrNoOrdnance) {
		t.Fatalf("expected ErrNoOrdnance but got %v", err)
	}
	if n.State() != Failed {
		t.Fatalf("expected state failed but got %s", n.State())
	}
}

func TestMissingOrdnanceInChildFailsParent(t *testing.T) {
	parent := NewFunc("parent", func(ctx context.Context, p *testPilot, f *Flight[*testPilot]) error {
		_, err := Deploy[*testPilot, int](ctx, f, &number{skip: true})
		return err
	})
	err := NewEngine[*testPilot]().Fly(context.Background(), &testPilot{}, parent)
	var reqErr *RequirementError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected a RequirementError but got %v", err)
	}
	if !errors.Is(err, ErrNoOrdnance) {
		t.Fatalf("expected the chain to contain ErrNoOrdnance but got %v", err)
	}
}

func TestRequirePropagatesFailure(t *testing.T) {
	notFound := errors.New("element not found")
	p := &testPilot{}
	root := NewSequence[*testPilot](
		&step{label: "one"},
		&step{label: "two", err: notFound},
		&step{label: "three"},
	)
	err := NewEngine[*testPilot]().Fly(context.Background(), p, root)
	if !errors.Is(err, notFound) {
		t.Fatalf("expected the failure of step two but got %v", err)
	}
	var reqErr *RequirementError
	if !errors.As(err, &reqErr) || reqErr.Maneuver != "two" {
		t.Fatalf("expected a RequirementError for step two but got %v", err)
	}
	if diff := cmp.Diff([]string{"one", "two"}, p.trail); diff != "" {
		t.Fatalf("expected the sequence to stop at the failure (-want +got):\n%s", diff)
	}
}

func TestExecuteWithoutRequireContinues(t *testing.T) {
	p := &testPilot{}
	var child *step
	parent := NewFunc("parent", func(ctx context.Context, pilot *testPilot, f *Flight[*testPilot]) error {
		child = &step{label: "optional", err: errors.New("boom")}
		f.Execute(ctx, child)
		return f.Run(ctx, &step{label: "after"})
	})
	if err := NewEngine[*testPilot]().Fly(context.Background(), p, parent); err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	if child.State() != Failed || child.Err() == nil {
		t.Fatalf("expected the optional child to be failed but got %s", child.State())
	}
	if diff := cmp.Diff([]string{"optional", "after"}, p.trail); diff != "" {
		t.Fatalf("unexpected trail (-want +got):\n%s", diff)
	}
}

func TestReattemptFails(t *testing.T) {
	s := &step{label: "once"}
	parent := NewFunc("parent", func(ctx context.Context, p *testPilot, f *Flight[*testPilot]) error {
		if err := f.Run(ctx, s); err != nil {
			return err
		}
		return f.Run(ctx, s)
	})
	p := &testPilot{}
	err := NewEngine[*testPilot]().Fly(context.Background(), p, parent)
	if !errors.Is(err, ErrReattempt) {
		t.Fatalf("expected ErrReattempt but got %v", err)
	}
	if len(p.trail) != 1 {
		t.Fatalf("expected the step to run once but it ran %d times", len(p.trail))
	}
}

func TestReattemptKeepsFirstResult(t *testing.T) {
	s := &step{label: "once"}
	var reattempt Maneuver[*testPilot]
	parent := NewFunc("parent", func(ctx context.Context, p *testPilot, f *Flight[*testPilot]) error {
		if err := f.Run(ctx, s); err != nil {
			return err
		}
		reattempt = f.Execute(ctx, s)
		return f.Require(s)
	})
	e := NewEngine[*testPilot]()
	if err := e.Fly(context.Background(), &testPilot{}, parent); err != nil {
		t.Fatalf("expected the first attempt to still satisfy Require but got %v", err)
	}
	if reattempt != s {
		t.Fatalf("expected Execute to return the child")
	}
	if s.State() != Succeeded || s.Err() != nil {
		t.Fatalf("expected the first attempt to stay succeeded but got %s (%v)", s.State(), s.Err())
	}
	if s.Record() != e.FlightLog().Children[0] {
		t.Fatalf("expected the maneuver to keep the record of its first attempt")
	}
	children := e.FlightLog().Children
	if len(children) != 2 {
		t.Fatalf("expected 2 records but got %d", len(children))
	}
	if children[0].State != Succeeded {
		t.Fatalf("expected the first record to be succeeded but got %s", children[0].State)
	}
	if children[1].State != Failed || !errors.Is(children[1].Err, ErrReattempt) {
		t.Fatalf("expected the second record to fail with ErrReattempt but got %s (%v)", children[1].State, children[1].Err)
	}
}

func TestCollectKeepsDeclaredOrder(t *testing.T) {
	c := NewCollect[*testPilot, int](&number{value: 3}, &number{value: 1}, &number{value: 2})
	if err := NewEngine[*testPilot]().Fly(context.Background(), &testPilot{}, c); err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	v, err := c.Deploy()
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{3, 1, 2}, v); diff != "" {
		t.Fatalf("unexpected ordnance (-want +got):\n%s", diff)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &testPilot{}
	err := NewEngine[*testPilot]().Fly(ctx, p, &step{label: "never"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled but got %v", err)
	}
	if len(p.trail) != 0 {
		t.Fatalf("expected nothing to run but got %v", p.trail)
	}
}

type countingObserver struct {
	attempts, completions int
}

func (o *countingObserver) OnAttempt(r *Record)  { o.attempts++ }
func (o *countingObserver) OnComplete(r *Record) { o.completions++ }

func TestFlightLog(t *testing.T) {
	o := &countingObserver{}
	e := NewEngine[*testPilot](o)
	root := NewSequence[*testPilot](&step{label: "a"}, &step{label: "b", err: errors.New("boom")})
	root.Label = "root"
	_ = e.Fly(context.Background(), &testPilot{}, root)

	names := []string{}
	depths := []int{}
	states := []State{}
	e.FlightLog().Walk(func(r *Record) {
		names = append(names, r.Name)
		depths = append(depths, r.Depth)
		states = append(states, r.State)
	})
	if diff := cmp.Diff([]string{"root", "a", "b"}, names); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1, 1}, depths); diff != "" {
		t.Fatalf("unexpected depths (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]State{Failed, Succeeded, Failed}, states); diff != "" {
		t.Fatalf("unexpected states (-want +got):\n%s", diff)
	}
	if o.attempts != 3 || o.completions != 3 {
		t.Fatalf("expected 3 attempts and completions but got %d and %d", o.attempts, o.completions)
	}
}

func TestOrdnanceDeployBeforeLoad(t *testing.T) {
	var o Ordnance[string]
	if _, err := o.Deploy(); !errors.Is(err, ErrNoOrdnance) {
		t.Fatalf("expected ErrNoOrdnance but got %v", err)
	}
	o.Load("report")
	if v, err := o.Deploy(); err != nil || v != "report" {
		t.Fatalf("expected 'report' but got %q (%v)", v, err)
	}
}

func TestName(t *testing.T) {
	if n := Name(&number{}); n != "number" {
		t.Fatalf("expected 'number' but got '%s'", n)
	}
	if n := Name(NewCollect[*testPilot, int]()); n != "Collect(0)" {
		t.Fatalf("expected 'Collect(0)' but got '%s'", n)
	}
	if n := Name(&step{label: "custom"}); n != "custom" {
		t.Fatalf("expected 'custom' but got '%s'", n)
	}
}
