// Package symbolindex implements the cross-file symbol table: a mapping
// from FQN to an ordered set of Entries, a mapping from FQN to Class/Module
// node, and an inverted FQN→references index.
package symbolindex

import (
	"github.com/sorahex/rubylsp/pkg/fqn"
)

// Visibility mirrors the target language's method visibility levels.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

// ParamKind tags a method parameter's binding form.
type ParamKind int

const (
	ParamRequired ParamKind = iota
	ParamOptional
	ParamRest
	ParamKeyword
	ParamKeywordRequired
	ParamKeywordRest
	ParamBlock
)

// Param is one formal parameter of a method Entry.
type Param struct {
	Name string
	Kind ParamKind
}

// Location is a half-open, UTF-8 byte-addressed span within a document.
// Line/Column fields are 1-based and editor-facing; the Start/End byte
// offsets are 0-based and used for O(1) code slicing via pkg/filesrc.
type Location struct {
	Document    string
	StartLine   uint32
	StartColumn uint32
	EndLine     uint32
	EndColumn   uint32
	StartByte   uint32
	EndByte     uint32
}

// Contains reports whether byte offset b falls within [StartByte, EndByte).
func (l Location) Contains(b uint32) bool {
	return b >= l.StartByte && b < l.EndByte
}

// Doc holds documentation extracted from the comment immediately preceding a
// definition, plus any structured tags recognized within it.
type Doc struct {
	Text    string
	Params  map[string]string // tag name → declared type, from @param
	Returns string            // declared return type, from @return
}

// Entry is one symbol definition record.
type Entry struct {
	FQN        fqn.FQN
	Location   Location
	Visibility Visibility
	Params     []Param // methods only
	ReturnType string  // optional declared return type (from Doc.Returns), methods only
	ValueType  string  // constants only: built-in class name inferred from a literal right-hand side, empty for stub placeholders and non-literal values
	Doc        Doc
	Owner      *fqn.FQN // declaring class/module FQN, for instance/class methods
}

// ReferenceKind tags what a Reference record denotes.
type ReferenceKind int

const (
	RefCall ReferenceKind = iota
	RefConstantRead
	RefIncludeTarget
	RefPrependTarget
	RefExtendTarget
	RefInheritTarget
	RefConstAssign
	RefIvarRead
	RefIvarWrite
	RefCvarRead
	RefCvarWrite
	RefGvarRead
	RefGvarWrite
)

// Reference is one use-site record. It names its target by FQN, never by
// Entry pointer, so references survive re-indexing of the target file.
type Reference struct {
	Target   fqn.FQN
	Location Location
	Kind     ReferenceKind
}

// NodeKind distinguishes a Class/Module node's own category (independent of
// the Kind tag carried by its FQN, which is always KindClass or KindModule).
type NodeKind int

const (
	NodeClass NodeKind = iota
	NodeModule
)

// ClassNode is the Symbol Index's record of a class or module's mixin and
// inheritance edges. Nodes reference each other only by FQN, never by
// pointer, so partial indexes and cyclic references never create ownership
// cycles.
type ClassNode struct {
	FQN        fqn.FQN
	NodeKind   NodeKind
	Superclass *fqn.FQN // classes only
	Included   []fqn.FQN
	Prepended  []fqn.FQN
	Extended   []fqn.FQN

	Methods          []fqn.FQN // owned instance-method Entry FQNs
	SingletonMethods []fqn.FQN // owned singleton-method Entry FQNs
	Constants        []fqn.FQN // owned constant child FQNs
}
