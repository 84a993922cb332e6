package ancestor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

func classFQN(name string) fqn.FQN  { return fqn.New(nil, name, fqn.KindClass) }
func moduleFQN(name string) fqn.FQN { return fqn.New(nil, name, fqn.KindModule) }

func TestResolve_LinearChainWithOneMixin(t *testing.T) {
	idx := symbolindex.New(rlslog.Discard())
	a, b, c := classFQN("A"), classFQN("B"), classFQN("C")
	m := moduleFQN("M")

	idx.DefineNode(a, symbolindex.NodeClass, "a.rb", nil, nil, nil, nil)
	idx.DefineNode(m, symbolindex.NodeModule, "m.rb", nil, nil, nil, nil)
	idx.DefineNode(b, symbolindex.NodeClass, "b.rb", &a, []fqn.FQN{m}, nil, nil)
	idx.DefineNode(c, symbolindex.NodeClass, "c.rb", &b, nil, nil, nil)

	r := New(idx, rlslog.Discard())
	chain := r.Resolve(c)

	require.Len(t, chain, 4)
	require.Equal(t, "C", chain[0].Terminal)
	require.Equal(t, "B", chain[1].Terminal)
	require.Equal(t, "M", chain[2].Terminal)
	require.Equal(t, "A", chain[3].Terminal)
}

func TestResolve_PrependGoesBeforeSelf(t *testing.T) {
	idx := symbolindex.New(rlslog.Discard())
	c := classFQN("C")
	p := moduleFQN("P")

	idx.DefineNode(p, symbolindex.NodeModule, "p.rb", nil, nil, nil, nil)
	idx.DefineNode(c, symbolindex.NodeClass, "c.rb", nil, nil, []fqn.FQN{p}, nil)

	r := New(idx, rlslog.Discard())
	chain := r.Resolve(c)

	require.Len(t, chain, 2)
	require.Equal(t, "P", chain[0].Terminal)
	require.Equal(t, "C", chain[1].Terminal)
}

func TestResolve_DiamondMixinKeepsFirstOccurrence(t *testing.T) {
	idx := symbolindex.New(rlslog.Discard())
	base := moduleFQN("Base")
	m1 := moduleFQN("M1")
	m2 := moduleFQN("M2")
	c := classFQN("C")

	idx.DefineNode(base, symbolindex.NodeModule, "base.rb", nil, nil, nil, nil)
	idx.DefineNode(m1, symbolindex.NodeModule, "m1.rb", nil, []fqn.FQN{base}, nil, nil)
	idx.DefineNode(m2, symbolindex.NodeModule, "m2.rb", nil, []fqn.FQN{base}, nil, nil)
	idx.DefineNode(c, symbolindex.NodeClass, "c.rb", nil, []fqn.FQN{m1, m2}, nil, nil)

	r := New(idx, rlslog.Discard())
	chain := r.Resolve(c)

	seen := map[string]int{}
	for _, f := range chain {
		seen[f.Terminal]++
	}
	require.Equal(t, 1, seen["Base"])
	require.Equal(t, "C", chain[0].Terminal)
}

func TestResolve_CycleIsDetectedAndDoesNotHang(t *testing.T) {
	idx := symbolindex.New(rlslog.Discard())
	x := moduleFQN("X")
	y := moduleFQN("Y")

	idx.DefineNode(x, symbolindex.NodeModule, "x.rb", nil, []fqn.FQN{y}, nil, nil)
	idx.DefineNode(y, symbolindex.NodeModule, "y.rb", nil, []fqn.FQN{x}, nil, nil)

	r := New(idx, rlslog.Discard())
	chain := r.Resolve(x)

	require.NotEmpty(t, chain)
	require.Equal(t, "X", chain[0].Terminal)
	require.NotEmpty(t, r.Diagnostics())
}

func TestResolve_MemoizesAndMarkDirtyInvalidatesDependents(t *testing.T) {
	idx := symbolindex.New(rlslog.Discard())
	a, b := classFQN("A"), classFQN("B")

	idx.DefineNode(a, symbolindex.NodeClass, "a.rb", nil, nil, nil, nil)
	idx.DefineNode(b, symbolindex.NodeClass, "b.rb", &a, nil, nil, nil)

	r := New(idx, rlslog.Discard())
	first := r.Resolve(b)
	require.Len(t, first, 2)

	r.MarkDirty(a)
	c := r.cellFor(b)
	require.Equal(t, dirty, c.state)

	second := r.Resolve(b)
	require.Equal(t, first, second)
}

func TestResolve_UnknownNodeResolvesToItselfAlone(t *testing.T) {
	idx := symbolindex.New(rlslog.Discard())
	r := New(idx, rlslog.Discard())

	ghost := classFQN("Ghost")
	chain := r.Resolve(ghost)

	require.Equal(t, []fqn.FQN{ghost}, chain)
}

func TestLinearizeAll_CoversEveryIndexedNode(t *testing.T) {
	idx := symbolindex.New(rlslog.Discard())
	a, b := classFQN("A"), classFQN("B")
	idx.DefineNode(a, symbolindex.NodeClass, "a.rb", nil, nil, nil, nil)
	idx.DefineNode(b, symbolindex.NodeClass, "b.rb", &a, nil, nil, nil)

	r := New(idx, rlslog.Discard())
	r.LinearizeAll()

	require.Equal(t, ready, r.cellFor(a).state)
	require.Equal(t, ready, r.cellFor(b).state)
}
