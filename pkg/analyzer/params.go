package analyzer

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// parseParameters reads a `method_parameters` (or `block_parameters`) node's
// children into the Entry's Param list, tagging each by its binding form.
func parseParameters(node *ts.Node, src []byte) []symbolindex.Param {
	if node == nil {
		return nil
	}
	var params []symbolindex.Param
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if p, ok := parseOneParameter(child, src); ok {
			params = append(params, p)
		}
	}
	return params
}

func parseOneParameter(node *ts.Node, src []byte) (symbolindex.Param, bool) {
	switch node.Kind() {
	case "identifier":
		return symbolindex.Param{Name: node.Utf8Text(src), Kind: symbolindex.ParamRequired}, true
	case "optional_parameter":
		name := node.ChildByFieldName("name")
		return symbolindex.Param{Name: identifierText(name, src), Kind: symbolindex.ParamOptional}, true
	case "splat_parameter", "rest_parameter":
		return symbolindex.Param{Name: restParamName(node, src), Kind: symbolindex.ParamRest}, true
	case "hash_splat_parameter", "double_splat_parameter":
		return symbolindex.Param{Name: restParamName(node, src), Kind: symbolindex.ParamKeywordRest}, true
	case "keyword_parameter":
		name := node.ChildByFieldName("name")
		kind := symbolindex.ParamKeyword
		if node.ChildByFieldName("value") == nil {
			kind = symbolindex.ParamKeywordRequired
		}
		return symbolindex.Param{Name: identifierText(name, src), Kind: kind}, true
	case "block_parameter":
		name := node.ChildByFieldName("name")
		return symbolindex.Param{Name: identifierText(name, src), Kind: symbolindex.ParamBlock}, true
	case "destructured_parameter":
		// `(a, b)` destructuring — not a single bindable name; skip rather
		// than inventing a synthetic one.
		return symbolindex.Param{}, false
	default:
		return symbolindex.Param{}, false
	}
}

// restParamName returns a splat parameter's bound name, or "" for a bare
// anonymous `*`/`**`.
func restParamName(node *ts.Node, src []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return identifierText(name, src)
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if c := node.NamedChild(i); c.Kind() == "identifier" {
			return c.Utf8Text(src)
		}
	}
	return ""
}
