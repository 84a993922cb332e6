package fqn

// Table is the read-only view of the Symbol Index that the constant lookup
// algorithm needs. It is intentionally narrow — fqn must not import
// pkg/symbolindex — so lookup.go can be unit tested against a fake table
// and reused by both pkg/symbolindex (building qualified lookups) and
// pkg/query (resolving constants at a cursor position).
type Table interface {
	// Resolve returns every FQN directly named `name` under parent that is
	// const-lookup-visible (class, module, or constant definitions share one
	// namespace in the target language). ok is false when nothing matches.
	Resolve(parent FQN, name string) (matches []FQN, ok bool)
}

// ResolveBareConstant looks up an unqualified constant reference `name`
// observed inside nesting (innermost last), trying in order: the lexical
// nesting stack innermost-out, then the innermost enclosing class/module's
// linearized ancestor chain (most-derived first, matching pkg/ancestor's
// output order), then the top level.
//
// Returns every matching FQN (callers rank ties) and whether anything
// resolved at all.
func ResolveBareConstant(table Table, name string, nesting []FQN, ancestors []FQN) ([]FQN, bool) {
	// Step 1: innermost-out through the nesting stack.
	for i := len(nesting) - 1; i >= 0; i-- {
		if matches, ok := table.Resolve(nesting[i], name); ok {
			return matches, true
		}
	}

	// Step 2: the innermost class's ancestor chain.
	for _, a := range ancestors {
		if matches, ok := table.Resolve(a, name); ok {
			return matches, true
		}
	}

	// Step 3: top level.
	if matches, ok := table.Resolve(TopLevel(), name); ok {
		return matches, true
	}

	return nil, false
}

// ResolveQualified resolves a qualified constant path (`A::B::C`): the
// leading bare name via ResolveBareConstant, then each subsequent segment as
// a direct child of the previous result.
//
// A leading `::` (forceTopLevel) skips straight to a top-level lookup for
// the first segment instead of walking the nesting stack and ancestor chain.
func ResolveQualified(table Table, segments []string, nesting []FQN, ancestors []FQN, forceTopLevel bool) ([]FQN, bool) {
	if len(segments) == 0 {
		return nil, false
	}

	var current []FQN
	var ok bool

	if forceTopLevel {
		current, ok = table.Resolve(TopLevel(), segments[0])
	} else {
		current, ok = ResolveBareConstant(table, segments[0], nesting, ancestors)
	}
	if !ok {
		return nil, false
	}

	for _, seg := range segments[1:] {
		// A qualified path must thread through a single concrete parent at
		// each step; when the previous step was ambiguous (open-class), try
		// each candidate in order until one has the child.
		var next []FQN
		found := false
		for _, parent := range current {
			if matches, ok := table.Resolve(parent, seg); ok {
				next = matches
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		current = next
	}

	return current, true
}
