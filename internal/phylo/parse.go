package phylo

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a Newick tree. Unnamed internal nodes are assigned edge.N
// names in post-order; an unnamed root is named root.
func Parse(text string) (*Tree, error) {
	p := &newickParser{input: strings.TrimSpace(text)}
	root, err := p.subtree()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ';' {
		p.pos++
		p.skipSpace()
	}
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("newick: unexpected trailing input at offset %d", p.pos)
	}

	if root.Name == "" {
		root.Name = "root"
	}
	counter := 0
	nameUnnamed(root, root, &counter)
	return assemble(root)
}

// nameUnnamed assigns edge.N to anonymous internal nodes, numbering them in
// the order their subtrees close.
func nameUnnamed(n, root *Node, counter *int) {
	for _, c := range n.Children {
		nameUnnamed(c, root, counter)
	}
	if n == root || n.Name != "" {
		return
	}
	n.Name = fmt.Sprintf("edge.%d", *counter)
	*counter++
}

type newickParser struct {
	input string
	pos   int
}

func (p *newickParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *newickParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *newickParser) subtree() (*Node, error) {
	p.skipSpace()
	node := &Node{}
	if p.peek() == '(' {
		p.pos++
		for {
			child, err := p.subtree()
			if err != nil {
				return nil, err
			}
			child.parent = node
			node.Children = append(node.Children, child)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
			default:
				return nil, fmt.Errorf("newick: expected ',' or ')' at offset %d", p.pos)
			}
			break
		}
	}

	name, err := p.label()
	if err != nil {
		return nil, err
	}
	node.Name = name
	if len(node.Children) == 0 && node.Name == "" {
		return nil, fmt.Errorf("newick: tip without a name at offset %d", p.pos)
	}

	p.skipSpace()
	if p.peek() == ':' {
		p.pos++
		length, err := p.number()
		if err != nil {
			return nil, err
		}
		node.Length = &length
	}
	return node, nil
}

func (p *newickParser) label() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ',', '(', ')', ':', ';':
			return strings.TrimSpace(p.input[start:p.pos]), nil
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos]), nil
}

func (p *newickParser) number() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, fmt.Errorf("newick: expected branch length at offset %d", p.pos)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("newick: bad branch length %q: %v", p.input[start:p.pos], err)
	}
	return value, nil
}

// String renders the tree as Newick, with branch lengths where present.
func (t *Tree) String() string {
	var b strings.Builder
	writeNewick(&b, t.root, true)
	b.WriteByte(';')
	return b.String()
}

func writeNewick(b *strings.Builder, n *Node, isRoot bool) {
	if len(n.Children) > 0 {
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNewick(b, c, false)
		}
		b.WriteByte(')')
	}
	if !isRoot || n.Name != "root" {
		b.WriteString(n.Name)
	}
	if n.Length != nil {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(*n.Length, 'g', -1, 64))
	}
}
