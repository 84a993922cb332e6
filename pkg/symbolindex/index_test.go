package symbolindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

func entryAt(target fqn.FQN, doc string, start, end uint32) *symbolindex.Entry {
	return &symbolindex.Entry{
		FQN: target,
		Location: symbolindex.Location{
			Document:  doc,
			StartByte: start,
			EndByte:   end,
		},
	}
}

func TestInsertEntry_IsIdempotent(t *testing.T) {
	idx := symbolindex.New(nil)
	target := fqn.New(nil, "Widget", fqn.KindClass)
	e := entryAt(target, "widget.rb", 0, 10)

	idx.InsertEntry(e)
	idx.InsertEntry(e)

	require.Len(t, idx.Lookup(target, nil), 1)
	require.EqualValues(t, 1, idx.Stats().Entries)
}

func TestInsertEntry_OpenClassAccumulatesMultipleEntries(t *testing.T) {
	idx := symbolindex.New(nil)
	target := fqn.New(nil, "Widget", fqn.KindClass)

	idx.InsertEntry(entryAt(target, "widget.rb", 0, 10))
	idx.InsertEntry(entryAt(target, "widget_ext.rb", 0, 20))

	entries := idx.Lookup(target, nil)
	require.Len(t, entries, 2)
}

func TestLookup_KindFilterNarrowsResults(t *testing.T) {
	idx := symbolindex.New(nil)
	class := fqn.New(nil, "Widget", fqn.KindClass)
	method := class.Child("paint", fqn.KindMethod)

	idx.InsertEntry(entryAt(class, "widget.rb", 0, 10))
	e := entryAt(method, "widget.rb", 11, 20)
	e.Owner = &class
	idx.InsertEntry(e)

	methodsOnly := idx.Lookup(method, symbolindex.KindFilter{fqn.KindMethod})
	require.Len(t, methodsOnly, 1)

	classesOnly := idx.Lookup(method, symbolindex.KindFilter{fqn.KindClass})
	require.Empty(t, classesOnly)
}

func TestResolve_FindsConstantAndNestedClassUnderSameParent(t *testing.T) {
	idx := symbolindex.New(nil)
	widget := fqn.New(nil, "Widget", fqn.KindClass)
	nested := widget.Child("Inner", fqn.KindClass)
	constant := widget.Child("MAX", fqn.KindConstant)

	idx.InsertEntry(entryAt(widget, "widget.rb", 0, 5))
	idx.InsertEntry(entryAt(nested, "widget.rb", 6, 20))
	idx.InsertEntry(entryAt(constant, "widget.rb", 21, 30))

	matches, ok := idx.Resolve(widget, "Inner")
	require.True(t, ok)
	require.True(t, matches[0].Equal(nested))

	matches, ok = idx.Resolve(widget, "MAX")
	require.True(t, ok)
	require.True(t, matches[0].Equal(constant))
}

func TestResolve_ModuleOwnerRegistersConstantsDespiteLaterKindRefinement(t *testing.T) {
	idx := symbolindex.New(nil)
	// Constant indexed before the module's own definition is seen (e.g. a
	// file assigning a constant in the module's namespace is indexed before
	// the file declaring the module). Container identity must not depend on
	// whether the owner is eventually a class or a module.
	mod := fqn.New(nil, "Helpers", fqn.KindModule)
	constant := mod.Child("VERSION", fqn.KindConstant)

	idx.InsertEntry(entryAt(constant, "helpers.rb", 0, 10))
	idx.DefineNode(mod, symbolindex.NodeModule, "helpers.rb", nil, nil, nil, nil)

	matches, ok := idx.Resolve(mod, "VERSION")
	require.True(t, ok)
	require.True(t, matches[0].Equal(constant))

	node, ok := idx.GetNode(mod)
	require.True(t, ok)
	require.Equal(t, symbolindex.NodeModule, node.NodeKind)
}

func TestDefineNode_PendingEdgeFlushesOnceTargetAppears(t *testing.T) {
	idx := symbolindex.New(nil)
	base := fqn.New(nil, "Base", fqn.KindClass)
	derived := fqn.New(nil, "Derived", fqn.KindClass)

	// Derived is indexed before Base: the superclass edge must be deferred.
	idx.DefineNode(derived, symbolindex.NodeClass, "derived.rb", &base, nil, nil, nil)

	node, ok := idx.GetNode(derived)
	require.True(t, ok)
	require.Nil(t, node.Superclass)
	require.Equal(t, 1, idx.Stats().PendingEdgeCount)

	idx.DefineNode(base, symbolindex.NodeClass, "base.rb", nil, nil, nil, nil)

	node, _ = idx.GetNode(derived)
	require.NotNil(t, node.Superclass)
	require.True(t, node.Superclass.Equal(base))
	require.Equal(t, 0, idx.Stats().PendingEdgeCount)
}

func TestDefineNode_IncludeAppliesImmediatelyWhenTargetAlreadyIndexed(t *testing.T) {
	idx := symbolindex.New(nil)
	mixin := fqn.New(nil, "Comparable", fqn.KindModule)
	host := fqn.New(nil, "Widget", fqn.KindClass)

	idx.DefineNode(mixin, symbolindex.NodeModule, "comparable.rb", nil, nil, nil, nil)
	idx.DefineNode(host, symbolindex.NodeClass, "widget.rb", nil, []fqn.FQN{mixin}, nil, nil)

	node, ok := idx.GetNode(host)
	require.True(t, ok)
	require.Len(t, node.Included, 1)
	require.True(t, node.Included[0].Equal(mixin))
}

func TestRemoveByLocation_RevertsEntriesReferencesAndAppliedEdges(t *testing.T) {
	idx := symbolindex.New(nil)
	mixin := fqn.New(nil, "Comparable", fqn.KindModule)
	host := fqn.New(nil, "Widget", fqn.KindClass)

	idx.DefineNode(mixin, symbolindex.NodeModule, "comparable.rb", nil, nil, nil, nil)
	idx.DefineNode(host, symbolindex.NodeClass, "widget.rb", nil, []fqn.FQN{mixin}, nil, nil)
	idx.InsertEntry(entryAt(host, "widget.rb", 0, 5))
	idx.AddReference(mixin, &symbolindex.Reference{
		Target:   mixin,
		Location: symbolindex.Location{Document: "widget.rb", StartByte: 6, EndByte: 16},
		Kind:     symbolindex.RefIncludeTarget,
	})

	idx.RemoveByLocation("widget.rb")

	require.Empty(t, idx.Lookup(host, nil))
	require.Empty(t, idx.ReferencesTo(mixin))

	node, ok := idx.GetNode(host)
	require.True(t, ok) // node itself survives (only its widget.rb contributions are gone)
	require.Empty(t, node.Included)
}

func TestRemoveByLocation_RevertsStillPendingEdge(t *testing.T) {
	idx := symbolindex.New(nil)
	base := fqn.New(nil, "Base", fqn.KindClass)
	derived := fqn.New(nil, "Derived", fqn.KindClass)

	idx.DefineNode(derived, symbolindex.NodeClass, "derived.rb", &base, nil, nil, nil)
	require.Equal(t, 1, idx.Stats().PendingEdgeCount)

	idx.RemoveByLocation("derived.rb")
	require.Equal(t, 0, idx.Stats().PendingEdgeCount)

	// Base showing up later must not resurrect the reverted edge.
	idx.DefineNode(base, symbolindex.NodeClass, "base.rb", nil, nil, nil, nil)
	node, ok := idx.GetNode(derived)
	require.True(t, ok)
	require.Nil(t, node.Superclass)
}

func TestSearchCompletions_PrefixMatchAndRemoval(t *testing.T) {
	idx := symbolindex.New(nil)
	widget := fqn.New(nil, "Widget", fqn.KindClass)
	widgetFactory := fqn.New(nil, "WidgetFactory", fqn.KindClass)

	idx.InsertEntry(entryAt(widget, "a.rb", 0, 5))
	idx.InsertEntry(entryAt(widgetFactory, "b.rb", 0, 5))

	matches := idx.SearchCompletions("Widget")
	require.Len(t, matches, 2)

	idx.RemoveByLocation("a.rb")
	matches = idx.SearchCompletions("Widget")
	require.Len(t, matches, 1)
	require.True(t, matches[0].Equal(widgetFactory))
}

func TestChildren_CollectsConstantsMethodsAndSingletonMethods(t *testing.T) {
	idx := symbolindex.New(nil)
	widget := fqn.New(nil, "Widget", fqn.KindClass)
	method := widget.Child("paint", fqn.KindMethod)
	singleton := widget.Child("build", fqn.KindSingletonMethod)
	constant := widget.Child("MAX", fqn.KindConstant)

	idx.InsertEntry(entryAt(widget, "widget.rb", 0, 5))
	me := entryAt(method, "widget.rb", 6, 10)
	me.Owner = &widget
	idx.InsertEntry(me)
	se := entryAt(singleton, "widget.rb", 11, 15)
	se.Owner = &widget
	idx.InsertEntry(se)
	idx.InsertEntry(entryAt(constant, "widget.rb", 16, 20))

	children := idx.Children(widget)
	require.ElementsMatch(t, []string{"paint", "build", "MAX"}, children)
}
