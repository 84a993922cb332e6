package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/analyzer"
	"github.com/sorahex/rubylsp/pkg/ancestor"
	"github.com/sorahex/rubylsp/pkg/filesrc"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/indexer"
	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/rparser"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

func TestSplitInspectName(t *testing.T) {
	owner, member, sep := splitInspectName("Animal::Dog#bark")
	assert.Equal(t, "Animal::Dog", owner)
	assert.Equal(t, "bark", member)
	assert.Equal(t, byte('#'), sep)

	owner, member, sep = splitInspectName("Dog.new")
	assert.Equal(t, "Dog", owner)
	assert.Equal(t, "new", member)
	assert.Equal(t, byte('.'), sep)

	owner, member, sep = splitInspectName("Dog")
	assert.Equal(t, "Dog", owner)
	assert.Equal(t, "", member)
	assert.Equal(t, byte(0), sep)
}

func TestParamSignature(t *testing.T) {
	params := []symbolindex.Param{
		{Name: "name", Kind: symbolindex.ParamRequired},
		{Name: "greeting", Kind: symbolindex.ParamOptional},
		{Name: "args", Kind: symbolindex.ParamRest},
		{Name: "loud", Kind: symbolindex.ParamKeywordRequired},
		{Name: "opts", Kind: symbolindex.ParamKeywordRest},
		{Name: "blk", Kind: symbolindex.ParamBlock},
	}
	assert.Equal(t, "name, greeting = ..., *args, loud:, **opts, &blk", paramSignature(params))
}

func TestMethodSeparator(t *testing.T) {
	instance := fqn.New([]string{"Dog"}, "bark", fqn.KindMethod)
	singleton := fqn.New([]string{"Dog"}, "new", fqn.KindSingletonMethod)
	assert.Equal(t, "#", methodSeparator(instance))
	assert.Equal(t, ".", methodSeparator(singleton))
}

func TestVisibilityWord(t *testing.T) {
	assert.Equal(t, "", visibilityWord(symbolindex.Public))
	assert.Equal(t, "protected", visibilityWord(symbolindex.Protected))
	assert.Equal(t, "private", visibilityWord(symbolindex.Private))
}

func TestFindClassOrModule_ResolvesEitherKind(t *testing.T) {
	root := t.TempDir()
	src := "class Dog < Animal\n  def bark\n  end\nend\n\nmodule Barkable\nend\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "dog.rb"), []byte(src), 0644))

	logger := rlslog.Discard()
	files := filesrc.New(filesrc.DefaultConfig())
	defer files.Close()
	parser := rparser.NewManager(logger, 1)
	defer parser.Close()
	idx := symbolindex.New(logger)
	az := analyzer.New(logger)
	resolver := ancestor.New(idx, logger)

	coord := indexer.New(indexer.Config{ProjectRoot: root, Workers: 1}, idx, az, resolver, files, parser, nil, logger)
	require.NoError(t, coord.Run(context.Background()))

	target, node, ok := findClassOrModule(idx, "Dog")
	require.True(t, ok)
	assert.Equal(t, "Dog", target.String())
	assert.Equal(t, symbolindex.NodeClass, node.NodeKind)

	target, node, ok = findClassOrModule(idx, "Barkable")
	require.True(t, ok)
	assert.Equal(t, "Barkable", target.String())
	assert.Equal(t, symbolindex.NodeModule, node.NodeKind)

	_, _, ok = findClassOrModule(idx, "NoSuchThing")
	assert.False(t, ok)
}
