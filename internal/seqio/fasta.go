package seqio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFasta reads FASTA records. Sequence data is upper-cased and
// whitespace inside records is dropped.
func ParseFasta(in io.Reader) ([]Seq, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var out []Seq
	var name string
	var data strings.Builder
	flush := func() {
		if name != "" {
			out = append(out, Seq{Name: name, Data: data.String()})
		}
		data.Reset()
	}

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, ">") {
			flush()
			name = strings.TrimSpace(strings.TrimPrefix(text, ">"))
			if idx := strings.IndexAny(name, " \t"); idx >= 0 {
				name = name[:idx]
			}
			if name == "" {
				return nil, fmt.Errorf("fasta line %d: record without a name", line)
			}
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("fasta line %d: sequence data before first header", line)
		}
		data.WriteString(strings.ToUpper(strings.Join(strings.Fields(text), "")))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fasta: %w", err)
	}
	flush()

	if len(out) == 0 {
		return nil, fmt.Errorf("fasta input has no records")
	}
	return out, nil
}

func ParseFastaFile(path string) ([]Seq, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	seqs, err := ParseFasta(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seqs, nil
}

func WriteFasta(out io.Writer, seqs []Seq) error {
	w := bufio.NewWriter(out)
	for _, s := range seqs {
		if _, err := fmt.Fprintf(w, ">%s\n", s.Name); err != nil {
			return err
		}
		data := s.Data
		for len(data) > 0 {
			n := 60
			if len(data) < n {
				n = len(data)
			}
			if _, err := fmt.Fprintln(w, data[:n]); err != nil {
				return err
			}
			data = data[n:]
		}
	}
	return w.Flush()
}
