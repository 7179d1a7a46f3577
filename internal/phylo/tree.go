package phylo

import "fmt"

// Node is a tree node. Every node except the root also stands for the edge
// leading into it, so edge names and node names are the same namespace.
type Node struct {
	Name     string
	Length   *float64
	Params   map[string]float64
	Children []*Node

	parent *Node
}

type Tree struct {
	root  *Node
	nodes map[string]*Node
}

func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) IsTip() bool {
	return len(n.Children) == 0
}

// SetParam attaches a named value to the edge leading into the node.
func (n *Node) SetParam(name string, value float64) {
	if n.Params == nil {
		n.Params = make(map[string]float64)
	}
	n.Params[name] = value
}

func (n *Node) SetLength(length float64) {
	v := length
	n.Length = &v
}

// FromTipNames builds a star tree with the given tips and no branch lengths.
func FromTipNames(names []string) (*Tree, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one tip name is required")
	}
	root := &Node{Name: "root"}
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("tip without a name")
		}
		root.Children = append(root.Children, &Node{Name: name, parent: root})
	}
	return assemble(root)
}

// assemble indexes the nodes of a rooted topology and validates names.
func assemble(root *Node) (*Tree, error) {
	t := &Tree{root: root, nodes: make(map[string]*Node)}
	var walk func(n *Node) error
	walk = func(n *Node) error {
		if n.Name == "" {
			return fmt.Errorf("node without a name")
		}
		if n != root && n.Name == "root" {
			return fmt.Errorf("root is a reserved node name")
		}
		if _, exists := t.nodes[n.Name]; exists {
			return fmt.Errorf("duplicate node name: %s", n.Name)
		}
		t.nodes[n.Name] = n
		for _, c := range n.Children {
			c.parent = n
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) Root() *Node {
	return t.root
}

// Node looks a node up by name.
func (t *Tree) Node(name string) (*Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// Tips returns the tip nodes in tree order.
func (t *Tree) Tips() []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsTip() {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

func (t *Tree) TipNames() []string {
	tips := t.Tips()
	out := make([]string, 0, len(tips))
	for _, tip := range tips {
		out = append(out, tip.Name)
	}
	return out
}

// Edges returns the nodes in post-order. The root is appended last and only
// when includeRoot is set, since it has no edge of its own.
func (t *Tree) Edges(includeRoot bool) []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			walk(c)
		}
		if n != t.root || includeRoot {
			out = append(out, n)
		}
	}
	walk(t.root)
	return out
}

func (t *Tree) EdgeNames(includeRoot bool) []string {
	edges := t.Edges(includeRoot)
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Name)
	}
	return out
}

// ConnectingNode returns the lowest common ancestor of two named nodes.
func (t *Tree) ConnectingNode(name1, name2 string) (*Node, error) {
	a, ok := t.nodes[name1]
	if !ok {
		return nil, fmt.Errorf("no node named %s in tree", name1)
	}
	b, ok := t.nodes[name2]
	if !ok {
		return nil, fmt.Errorf("no node named %s in tree", name2)
	}

	seen := make(map[*Node]bool)
	for n := a; n != nil; n = n.parent {
		seen[n] = true
	}
	for n := b; n != nil; n = n.parent {
		if seen[n] {
			return n, nil
		}
	}
	return nil, fmt.Errorf("no connecting node for %s and %s", name1, name2)
}

// SubtreeEdgeNames resolves the clade and/or stem edges implied by a pair of
// tips. The stem is the edge above their connecting node; the clade is every
// edge strictly inside the subtree the connecting node defines. When an
// outgroup is given the tree is re-rooted on it before resolving, which lets
// a pair whose connecting node would otherwise be the root form a clade.
func (t *Tree) SubtreeEdgeNames(tip1, tip2 string, stem, clade bool, outgroup string) ([]string, error) {
	tree := t
	if outgroup != "" {
		og, ok := t.nodes[outgroup]
		if !ok {
			return nil, fmt.Errorf("no node named %s in tree", outgroup)
		}
		if !og.IsTip() {
			return nil, fmt.Errorf("outgroup %s must be a tip", outgroup)
		}
		rerooted, err := t.rerootedAt(outgroup)
		if err != nil {
			return nil, err
		}
		tree = rerooted
	}

	join, err := tree.ConnectingNode(tip1, tip2)
	if err != nil {
		return nil, err
	}

	var names []string
	if stem {
		if join == tree.root {
			return nil, fmt.Errorf("connecting node of %s and %s is the root and has no stem edge", tip1, tip2)
		}
		names = append(names, join.Name)
	}
	if clade {
		for _, child := range join.Children {
			appendSubtreeNames(&names, child)
		}
	}
	return names, nil
}

func appendSubtreeNames(names *[]string, n *Node) {
	*names = append(*names, n.Name)
	for _, c := range n.Children {
		appendSubtreeNames(names, c)
	}
}

// Clone deep-copies the tree, including lengths and edge parameters.
func (t *Tree) Clone() *Tree {
	var dup func(n *Node) *Node
	dup = func(n *Node) *Node {
		out := &Node{Name: n.Name}
		if n.Length != nil {
			v := *n.Length
			out.Length = &v
		}
		if n.Params != nil {
			out.Params = make(map[string]float64, len(n.Params))
			for k, v := range n.Params {
				out.Params[k] = v
			}
		}
		out.Children = make([]*Node, 0, len(n.Children))
		for _, c := range n.Children {
			child := dup(c)
			child.parent = out
			out.Children = append(out.Children, child)
		}
		return out
	}
	clone, err := assemble(dup(t.root))
	if err != nil {
		// the source tree was already validated, so a copy cannot fail
		panic(err)
	}
	return clone
}

// rerootedAt returns a copy of the tree rooted so the named tip hangs
// directly off a fresh root. Branch identities keep their names; the split
// tip branch keeps its length on the tip side.
func (t *Tree) rerootedAt(tipName string) (*Tree, error) {
	clone := t.Clone()
	tip, ok := clone.nodes[tipName]
	if !ok {
		return nil, fmt.Errorf("no node named %s in tree", tipName)
	}
	parent := tip.parent
	if parent == nil {
		return nil, fmt.Errorf("cannot reroot at the root")
	}

	removeChild(parent, tip)

	var path []*Node
	for n := parent; n != nil; n = n.parent {
		path = append(path, n)
	}

	// Reverse the parent links along the path. The branch between adjacent
	// path nodes keeps its length and params but moves to the node that is
	// now the child.
	lengths := make([]*float64, len(path))
	params := make([]map[string]float64, len(path))
	for i, n := range path {
		lengths[i] = n.Length
		params[i] = n.Params
	}
	for i := 0; i+1 < len(path); i++ {
		removeChild(path[i+1], path[i])
		path[i].Children = append(path[i].Children, path[i+1])
		path[i+1].parent = path[i]
		path[i+1].Length = lengths[i]
		path[i+1].Params = params[i]
	}
	head := path[0]
	head.Length = nil
	head.Params = nil

	// The old root lost its path child. A root left with a single child is a
	// degree-two node in the unrooted tree, so it gets spliced out.
	oldRoot := path[len(path)-1]
	if len(oldRoot.Children) == 1 {
		only := oldRoot.Children[0]
		if oldRoot.Length != nil {
			merged := *oldRoot.Length
			if only.Length != nil {
				merged += *only.Length
			}
			only.Length = &merged
		}
		if oldRoot == head {
			head = only
		} else {
			above := oldRoot.parent
			removeChild(above, oldRoot)
			above.Children = append(above.Children, only)
			only.parent = above
		}
	} else {
		oldRoot.Name = freshEdgeName(clone.nodes)
	}

	newRoot := &Node{Name: "root"}
	newRoot.Children = []*Node{tip, head}
	tip.parent = newRoot
	head.parent = newRoot

	return assemble(newRoot)
}

func removeChild(parent, child *Node) {
	for i, c := range parent.Children {
		if c == child {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
}

// freshEdgeName picks the first edge.N name not already used in the tree.
func freshEdgeName(taken map[string]*Node) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("edge.%d", i)
		if _, ok := taken[name]; !ok {
			return name
		}
	}
}
