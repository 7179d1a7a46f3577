package likelihood

import (
	"fmt"

	"klados/internal/phylo"
)

// resolveEdges turns a rule's edge selectors into explicit edge names. Only
// one of Edge, Edges, or TipNames may be used. TipNames select the subtree
// the two named tips define: by default the clade inside it, the stem edge
// with IsStem, or both. A nil result means the rule spans every edge.
func resolveEdges(tree *phylo.Tree, r Rule) ([]string, error) {
	selectors := 0
	if r.Edge != "" {
		selectors++
	}
	if len(r.Edges) > 0 {
		selectors++
	}
	if len(r.TipNames) > 0 {
		selectors++
	}
	if selectors > 1 {
		return nil, fmt.Errorf("%w: use only one of edge, edges, or tip names", ErrScope)
	}

	if len(r.TipNames) == 0 {
		if r.IsClade != nil || r.IsStem != nil || r.Outgroup != "" {
			return nil, fmt.Errorf("%w: clade, stem, and outgroup selectors require tip names", ErrScope)
		}
	}

	var edges []string
	switch {
	case r.Edge != "":
		edges = []string{r.Edge}
	case len(r.Edges) > 0:
		edges = append([]string(nil), r.Edges...)
	case len(r.TipNames) > 0:
		if len(r.TipNames) != 2 {
			return nil, fmt.Errorf("%w: tip names must name exactly 2 tips, got %d", ErrScope, len(r.TipNames))
		}
		stem := r.IsStem != nil && *r.IsStem
		clade := !stem
		if r.IsClade != nil {
			clade = *r.IsClade
		}
		if !stem && !clade {
			return nil, fmt.Errorf("%w: tip name selection excludes both stem and clade", ErrScope)
		}
		resolved, err := tree.SubtreeEdgeNames(r.TipNames[0], r.TipNames[1], stem, clade, r.Outgroup)
		if err != nil {
			return nil, err
		}
		if len(resolved) == 0 {
			return nil, fmt.Errorf("%w: selection matches no edges", ErrScope)
		}
		edges = resolved
	default:
		return nil, nil
	}

	for _, name := range edges {
		if name == "root" {
			return nil, fmt.Errorf("%w: the root has no edge parameters", ErrScope)
		}
	}
	return edges, nil
}
