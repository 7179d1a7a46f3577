package seqio

import "fmt"

type Seq struct {
	Name string
	Data string
}

// Alignment holds named rows of equal length. Row order is preserved so
// column access and output stay deterministic.
type Alignment struct {
	seqs   []Seq
	byName map[string]int
	length int
}

func NewAlignment(seqs []Seq) (*Alignment, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("alignment requires at least one sequence")
	}
	a := &Alignment{
		seqs:   append([]Seq(nil), seqs...),
		byName: make(map[string]int, len(seqs)),
		length: len(seqs[0].Data),
	}
	for i, s := range a.seqs {
		if s.Name == "" {
			return nil, fmt.Errorf("sequence %d has no name", i)
		}
		if _, exists := a.byName[s.Name]; exists {
			return nil, fmt.Errorf("duplicate sequence name: %s", s.Name)
		}
		if len(s.Data) != a.length {
			return nil, fmt.Errorf("sequence %s has length %d, expected %d", s.Name, len(s.Data), a.length)
		}
		a.byName[s.Name] = i
	}
	return a, nil
}

// Len is the number of aligned columns.
func (a *Alignment) Len() int {
	return a.length
}

func (a *Alignment) NumSeqs() int {
	return len(a.seqs)
}

func (a *Alignment) Names() []string {
	out := make([]string, 0, len(a.seqs))
	for _, s := range a.seqs {
		out = append(out, s.Name)
	}
	return out
}

func (a *Alignment) Seq(name string) (string, bool) {
	i, ok := a.byName[name]
	if !ok {
		return "", false
	}
	return a.seqs[i].Data, true
}

func (a *Alignment) Seqs() []Seq {
	return append([]Seq(nil), a.seqs...)
}

// Column returns the symbols of column i in row order.
func (a *Alignment) Column(i int) ([]byte, error) {
	if i < 0 || i >= a.length {
		return nil, fmt.Errorf("column %d out of range [0,%d)", i, a.length)
	}
	out := make([]byte, len(a.seqs))
	for j, s := range a.seqs {
		out[j] = s.Data[i]
	}
	return out, nil
}

// Take extracts the named rows, in the order given.
func (a *Alignment) Take(names []string) (*Alignment, error) {
	seqs := make([]Seq, 0, len(names))
	for _, name := range names {
		i, ok := a.byName[name]
		if !ok {
			return nil, fmt.Errorf("no sequence named %s in alignment", name)
		}
		seqs = append(seqs, a.seqs[i])
	}
	return NewAlignment(seqs)
}
