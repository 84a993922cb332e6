package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sorahex/rubylsp/pkg/analyzer"
	"github.com/sorahex/rubylsp/pkg/ancestor"
	"github.com/sorahex/rubylsp/pkg/filesrc"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/indexer"
	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/rparser"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

const maxWidth = 80

// runInspect builds a one-shot index over the project rooted at the current
// (or --project-root) directory and prints what the Symbol Index and
// ancestor linearization know about one name: a class/module path
// ("Foo::Bar"), an instance method ("Foo::Bar#baz"), or a singleton method
// ("Foo::Bar.baz").
func runInspect(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rubylsp inspect <Name> [--project-root dir]")
		os.Exit(1)
	}
	name := args[0]
	f := parseServeFlags(args[1:])
	logger := rlslog.New(resolveLogConfig(f))

	files := filesrc.New(filesrc.DefaultConfig())
	defer files.Close()

	parser := rparser.NewManager(logger, f.workers)
	defer parser.Close()

	idx := symbolindex.New(logger)
	az := analyzer.New(logger)
	resolver := ancestor.New(idx, logger)

	ic := resolveIndexerConfig(f)
	coord := indexer.New(ic, idx, az, resolver, files, parser, nil, logger)
	if err := coord.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}

	owner, member, memberSep := splitInspectName(name)
	ownerFQN, node, ok := findClassOrModule(idx, owner)
	if !ok {
		fmt.Fprintf(os.Stderr, "inspect: %s: not found\n", owner)
		os.Exit(1)
	}

	if member == "" {
		printClassHuman(idx, resolver, ownerFQN, node)
		return
	}

	kind := fqn.KindMethod
	if memberSep == '.' {
		kind = fqn.KindSingletonMethod
	}
	entries := idx.Lookup(ownerFQN.Child(member, kind), nil)
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "inspect: %s not found on %s\n", member, owner)
		os.Exit(1)
	}
	printMethodHuman(entries[0])
}

// splitInspectName splits "Foo::Bar#baz" into ("Foo::Bar", "baz", '#') or
// "Foo::Bar.baz" into ("Foo::Bar", "baz", '.'). A name with neither
// separator is returned whole as the owner path.
func splitInspectName(name string) (owner, member string, sep byte) {
	if i := strings.IndexByte(name, '#'); i >= 0 {
		return name[:i], name[i+1:], '#'
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:], '.'
	}
	return name, "", 0
}

// findClassOrModule resolves a "::"-joined name to its ClassNode, trying
// the class Kind first and falling back to module (a bare name alone
// doesn't say which one it names).
func findClassOrModule(idx *symbolindex.Index, path string) (fqn.FQN, *symbolindex.ClassNode, bool) {
	segments := strings.Split(path, "::")
	terminal := segments[len(segments)-1]
	namespace := segments[:len(segments)-1]

	for _, kind := range []fqn.Kind{fqn.KindClass, fqn.KindModule} {
		target := fqn.New(namespace, terminal, kind)
		if node, ok := idx.GetNode(target); ok {
			return target, node, true
		}
	}
	return fqn.FQN{}, nil, false
}

func printClassHuman(idx *symbolindex.Index, resolver *ancestor.Resolver, target fqn.FQN, node *symbolindex.ClassNode) {
	kindWord := "class"
	if node.NodeKind == symbolindex.NodeModule {
		kindWord = "module"
	}
	fmt.Printf("%s %s\n", kindWord, target.String())

	if entries := idx.Lookup(target, nil); len(entries) > 0 && entries[0].Doc.Text != "" {
		fmt.Println()
		printWrapped(entries[0].Doc.Text, 2, maxWidth)
	}

	if node.Superclass != nil {
		fmt.Printf("\nsuperclass: %s\n", node.Superclass.String())
	}
	printFQNList("included", node.Included)
	printFQNList("prepended", node.Prepended)
	printFQNList("extended", node.Extended)

	chain := resolver.Resolve(target)
	if len(chain) > 0 {
		fmt.Println("\nancestors (method-resolution order):")
		for i, a := range chain {
			fmt.Printf("  %d. %s\n", i+1, a.String())
		}
	}

	printMemberList("methods", node.Methods)
	printMemberList("singleton methods", node.SingletonMethods)
	printMemberList("constants", node.Constants)
}

func printFQNList(label string, list []fqn.FQN) {
	if len(list) == 0 {
		return
	}
	names := make([]string, len(list))
	for i, f := range list {
		names[i] = f.String()
	}
	fmt.Printf("%s: %s\n", label, strings.Join(names, ", "))
}

func printMemberList(title string, members []fqn.FQN) {
	if len(members) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(members))
	for _, m := range members {
		fmt.Printf("  %s\n", m.Terminal)
	}
}

func printMethodHuman(e *symbolindex.Entry) {
	fmt.Printf("%s%s%s\n", e.FQN.Namespace().String(), methodSeparator(e.FQN), e.FQN.Terminal)
	fmt.Printf("  defined at %s:%d:%d\n", e.Location.Document, e.Location.StartLine, e.Location.StartColumn)
	if vis := visibilityWord(e.Visibility); vis != "" {
		fmt.Printf("  visibility: %s\n", vis)
	}
	fmt.Printf("  signature: %s(%s)\n", e.FQN.Terminal, paramSignature(e.Params))
	if e.ReturnType != "" {
		fmt.Printf("  returns: %s\n", e.ReturnType)
	}
	if e.Doc.Text != "" {
		fmt.Println()
		printWrapped(e.Doc.Text, 2, maxWidth)
	}
}

func methodSeparator(f fqn.FQN) string {
	if f.Kind == fqn.KindSingletonMethod {
		return "."
	}
	return "#"
}

func visibilityWord(v symbolindex.Visibility) string {
	switch v {
	case symbolindex.Protected:
		return "protected"
	case symbolindex.Private:
		return "private"
	default:
		return ""
	}
}

// paramSignature renders Params the way the target language would print a
// method signature (required, optional, *rest, keyword, keyword:, **rest, &block).
func paramSignature(params []symbolindex.Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		switch p.Kind {
		case symbolindex.ParamOptional:
			parts = append(parts, p.Name+" = ...")
		case symbolindex.ParamRest:
			parts = append(parts, "*"+p.Name)
		case symbolindex.ParamKeyword:
			parts = append(parts, p.Name+": ...")
		case symbolindex.ParamKeywordRequired:
			parts = append(parts, p.Name+":")
		case symbolindex.ParamKeywordRest:
			parts = append(parts, "**"+p.Name)
		case symbolindex.ParamBlock:
			parts = append(parts, "&"+p.Name)
		default:
			parts = append(parts, p.Name)
		}
	}
	return strings.Join(parts, ", ")
}

// printWrapped word-wraps text at width, indenting every line.
func printWrapped(text string, indent, width int) {
	prefix := strings.Repeat(" ", indent)
	for _, paragraph := range strings.Split(text, "\n") {
		line := prefix
		for _, word := range strings.Fields(paragraph) {
			if len(line)+1+len(word) > width && line != prefix {
				fmt.Println(line)
				line = prefix
			}
			if line != prefix {
				line += " "
			}
			line += word
		}
		fmt.Println(line)
	}
}
