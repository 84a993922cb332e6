package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/rparser"
)

func TestClassify_InstanceVariable(t *testing.T) {
	src := "@count"
	parser := rparser.NewManager(rlslog.Discard(), 1)
	t.Cleanup(func() { _ = parser.Close() })
	tree, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	defer tree.Close()

	node := tree.RootNode().NamedDescendantForByteRange(1, 1)
	id := classify(node)
	require.Equal(t, identInstanceVar, id.kind)
	require.Equal(t, "@count", identifierText(id.node, []byte(src)))
}

func TestClassify_BareIdentifierIsLocalVarCategory(t *testing.T) {
	src := "x = 1\nx"
	parser := rparser.NewManager(rlslog.Discard(), 1)
	t.Cleanup(func() { _ = parser.Close() })
	tree, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	defer tree.Close()

	offset := uint32(len(src) - 1) // the second "x"
	node := tree.RootNode().NamedDescendantForByteRange(offset, offset)
	id := classify(node)
	require.Equal(t, identLocalVar, id.kind)
}

func TestClassify_CallWithExplicitReceiver(t *testing.T) {
	src := "Dog.new"
	parser := rparser.NewManager(rlslog.Discard(), 1)
	t.Cleanup(func() { _ = parser.Close() })
	tree, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	defer tree.Close()

	offset := uint32(len("Dog."))
	node := tree.RootNode().NamedDescendantForByteRange(offset, offset)
	id := classify(node)
	require.Equal(t, identMethodCall, id.kind)
	require.NotNil(t, id.receiver)
	require.Equal(t, "Dog", identifierText(id.receiver, []byte(src)))
	require.Equal(t, "new", identifierText(id.node, []byte(src)))
}

func TestClassify_Constant(t *testing.T) {
	src := "Foo::Bar"
	parser := rparser.NewManager(rlslog.Discard(), 1)
	t.Cleanup(func() { _ = parser.Close() })
	tree, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	defer tree.Close()

	// Offset 3 is the "::" token, so the smallest named node is the whole
	// scope_resolution rather than the leading Foo constant.
	node := tree.RootNode().NamedDescendantForByteRange(3, 3)
	id := classify(node)
	require.Equal(t, identConstant, id.kind)

	segs, forceTop := constantPathSegments(id.node, []byte(src))
	require.Equal(t, []string{"Foo", "Bar"}, segs)
	require.False(t, forceTop)
}

func TestClassify_TopLevelScopeResolutionForcesTopLevel(t *testing.T) {
	src := "::Foo"
	parser := rparser.NewManager(rlslog.Discard(), 1)
	t.Cleanup(func() { _ = parser.Close() })
	tree, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	defer tree.Close()

	node := tree.RootNode().NamedDescendantForByteRange(0, 0)
	id := classify(node)
	require.Equal(t, identConstant, id.kind)

	segs, forceTop := constantPathSegments(id.node, []byte(src))
	require.Equal(t, []string{"Foo"}, segs)
	require.True(t, forceTop)
}

func TestReceiverIsSelf(t *testing.T) {
	require.True(t, receiverIsSelf(nil, nil))
}
