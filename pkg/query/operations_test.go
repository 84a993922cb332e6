package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindDefinitionsAtPosition_SelfMethodCallResolvesToOwnClass(t *testing.T) {
	src := `class Animal
  def speak
    "..."
  end
end

class Dog < Animal
  def speak
    "Woof"
  end

  def greet
    speak
  end
end
`
	f := newFixture(t, map[string]string{"animal.rb": src})

	pos := positionAt(t, src, "speak\n  end\nend\n")
	locs, err := f.layer.FindDefinitionsAtPosition("animal.rb", pos)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, "animal.rb", locs[0].Document)
	// Dog owns its own "speak"; resolution must stop there rather than
	// walking up to Animal's definition on line 2.
	require.Equal(t, uint32(8), locs[0].StartLine)
}

func TestFindDefinitionsAtPosition_InheritedMethodCallWalksAncestorChain(t *testing.T) {
	src := `class Animal
  def speak
    "..."
  end
end

class Dog < Animal
  def greet
    speak
  end
end
`
	f := newFixture(t, map[string]string{"animal.rb": src})

	pos := positionAt(t, src, "speak\n  end\nend\n")
	locs, err := f.layer.FindDefinitionsAtPosition("animal.rb", pos)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	// Dog has no own "speak"; resolution must walk up to Animal's definition,
	// which starts on line 2.
	require.Equal(t, uint32(2), locs[0].StartLine)
}

func TestFindDefinitionsAtPosition_ExplicitConstantReceiverMethodCall(t *testing.T) {
	src := `class Dog
  def self.bark
    "Woof"
  end
end

Dog.bark
`
	f := newFixture(t, map[string]string{"dog.rb": src})

	callSite := positionAt(t, src, "Dog.bark")
	pos := Position{Line: callSite.Line, Column: callSite.Column + uint32(len("Dog."))}
	locs, err := f.layer.FindDefinitionsAtPosition("dog.rb", pos)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, uint32(2), locs[0].StartLine)
}

func TestFindDefinitionsAtPosition_InstanceVariableWalksToDeclaringAncestor(t *testing.T) {
	src := `class Animal
  def initialize
    @name = "rex"
  end
end

class Dog < Animal
  def name
    @name
  end
end
`
	f := newFixture(t, map[string]string{"animal.rb": src})

	pos := positionAt(t, src, "@name\n  end\nend\n")
	locs, err := f.layer.FindDefinitionsAtPosition("animal.rb", pos)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, uint32(3), locs[0].StartLine)
}

func TestFindDefinitionsAtPosition_LocalVariableResolvesToFirstAssignment(t *testing.T) {
	src := `def compute
  total = 1
  total
end
`
	f := newFixture(t, map[string]string{"compute.rb": src})

	pos := positionAt(t, src, "total\nend\n")
	locs, err := f.layer.FindDefinitionsAtPosition("compute.rb", pos)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, uint32(2), locs[0].StartLine)
}

func TestFindDefinitionsAtPosition_ConstantLookupViaNesting(t *testing.T) {
	src := `module Outer
  class Inner
  end

  class User
    def build
      Inner.new
    end
  end
end
`
	f := newFixture(t, map[string]string{"outer.rb": src})

	pos := positionAt(t, src, "Inner.new\n")
	locs, err := f.layer.FindDefinitionsAtPosition("outer.rb", pos)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, uint32(2), locs[0].StartLine)
}

func TestFindReferencesAtPosition_MethodDefinitionFindsCallSite(t *testing.T) {
	src := `class Greeter
  def hello
    "hi"
  end

  def run
    hello()
  end
end
`
	f := newFixture(t, map[string]string{"greeter.rb": src})

	pos := positionAt(t, src, "hello\n    \"hi\"")
	locs, err := f.layer.FindReferencesAtPosition("greeter.rb", pos)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, uint32(7), locs[0].StartLine)
}

func TestHoverAtPosition_ReturnsDocCommentAndInferredType(t *testing.T) {
	src := `class Greeter
  # Builds the greeting text.
  # @return String
  def hello
    "hi"
  end

  def run
    hello
  end
end
`
	f := newFixture(t, map[string]string{"greeter.rb": src})

	pos := positionAt(t, src, "hello\n  end\nend\n")
	hover, err := f.layer.HoverAtPosition("greeter.rb", pos)
	require.NoError(t, err)
	require.Equal(t, "Builds the greeting text.", hover.Content)
	require.True(t, hover.Type.Known)
	require.Equal(t, "String", hover.Type.FQN.String())
}

func TestDocumentSymbols_ListsDefinitionsInSourceOrder(t *testing.T) {
	src := `class Greeter
  def hello
  end

  def bye
  end
end
`
	f := newFixture(t, map[string]string{"greeter.rb": src})

	symbols := f.layer.DocumentSymbols("greeter.rb")
	require.Len(t, symbols, 3)
	require.Equal(t, "Greeter", symbols[0].Name)
	require.Equal(t, "hello", symbols[1].Name)
	require.Equal(t, "bye", symbols[2].Name)
}
