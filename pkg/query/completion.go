package query

import (
	"sort"
	"strings"

	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// completionScore holds the ranking key for one candidate: exact prefix
// match first, then ancestor-chain proximity to the call site, then
// owning-file-is-current, then alphabetic.
type completionScore struct {
	exactMatch  bool
	proximity   int // lower is closer; len(ancestors)+1 when the owner is off-chain
	currentFile bool
	name        string
}

func less(a, b completionScore) bool {
	if a.exactMatch != b.exactMatch {
		return a.exactMatch
	}
	if a.proximity != b.proximity {
		return a.proximity < b.proximity
	}
	if a.currentFile != b.currentFile {
		return a.currentFile
	}
	return a.name < b.name
}

// CompletionsAtPosition implements completions_at_position: every indexed
// name beginning with prefix, plus in-scope local variables, ranked by
// completionScore.
func (l *Layer) CompletionsAtPosition(uri string, pos Position, prefix string) ([]CompletionItem, error) {
	snap, offset, err := l.snapshotAt(uri, pos)
	if err != nil {
		return nil, err
	}
	nesting := snap.Scopes.NestingAt(doccache.Position(offset))
	ancestors := l.ancestorsForNesting(nesting)

	type scored struct {
		item  CompletionItem
		score completionScore
	}
	var candidates []scored

	for _, target := range l.idx.SearchCompletions(prefix) {
		entries := l.idx.Lookup(target, nil)
		candidates = append(candidates, scored{
			item:  CompletionItem{Name: target.Terminal, FQN: target, Kind: target.Kind},
			score: scoreEntry(uri, prefix, target, entries, ancestors),
		})
	}

	if scope := snap.Scopes.ScopeAt(doccache.Position(offset)); scope != nil {
		for _, name := range snap.Scopes.LocalNames(scope.ID) {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			candidates = append(candidates, scored{
				item:  CompletionItem{Name: name, FQN: fqn.FQN{}, Kind: fqn.KindLocalVar},
				score: completionScore{exactMatch: name == prefix, proximity: len(ancestors) + 1, currentFile: true, name: name},
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return less(candidates[i].score, candidates[j].score) })

	out := make([]CompletionItem, len(candidates))
	for i, c := range candidates {
		out[i] = c.item
	}
	return out, nil
}

// scoreEntry computes target's ranking key from the Entries registered
// under it (there may be several for an open class/module reopened across
// files) and the ancestor chain of the current call site.
func scoreEntry(uri, prefix string, target fqn.FQN, entries []*symbolindex.Entry, ancestors []fqn.FQN) completionScore {
	score := completionScore{
		exactMatch: target.Terminal == prefix,
		proximity:  len(ancestors) + 1,
		name:       target.Terminal,
	}
	for _, e := range entries {
		if e.Location.Document == uri {
			score.currentFile = true
		}
		owner := e.Owner
		if owner == nil && (target.Kind == fqn.KindClass || target.Kind == fqn.KindModule || target.Kind == fqn.KindConstant) {
			ns := target.Namespace()
			owner = &ns
		}
		if owner == nil {
			continue
		}
		for i, a := range ancestors {
			if owner.Equal(a) && i < score.proximity {
				score.proximity = i
			}
		}
	}
	return score
}
