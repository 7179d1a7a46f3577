package phylo

import (
	"reflect"
	"testing"
)

func mustParse(t *testing.T, text string) *Tree {
	t.Helper()
	tree, err := Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return tree
}

func TestParseRoundTrip(t *testing.T) {
	tree := mustParse(t, "((a:0.1,b:0.2):0.05,c:0.3);")

	if got := tree.String(); got != "((a:0.1,b:0.2)edge.0:0.05,c:0.3);" {
		t.Fatalf("unexpected newick: %s", got)
	}

	again := mustParse(t, tree.String())
	if again.String() != tree.String() {
		t.Fatalf("round trip mismatch: %s vs %s", again.String(), tree.String())
	}
}

func TestParseNamesInternalEdgesInPostOrder(t *testing.T) {
	tree := mustParse(t, "((a,b),(c,d));")

	names := tree.EdgeNames(false)
	expected := []string{"a", "b", "edge.0", "c", "d", "edge.1"}
	if !reflect.DeepEqual(names, expected) {
		t.Fatalf("unexpected edge names: %v", names)
	}
}

func TestParseRejectsDuplicateNames(t *testing.T) {
	if _, err := Parse("((a,b)x,(c,a)y);"); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestParseRejectsReservedRootName(t *testing.T) {
	if _, err := Parse("((a,b)root,c);"); err == nil {
		t.Fatal("expected reserved name error")
	}
}

func TestParseRejectsUnnamedTip(t *testing.T) {
	if _, err := Parse("((a,),c);"); err == nil {
		t.Fatal("expected unnamed tip error")
	}
}

func TestParseKeepsExplicitRootName(t *testing.T) {
	tree := mustParse(t, "((a,b)x,c)myroot;")
	if tree.Root().Name != "myroot" {
		t.Fatalf("unexpected root name: %s", tree.Root().Name)
	}
}

func TestTipNames(t *testing.T) {
	tree := mustParse(t, "((a,b)x,(c,d)y);")
	if got := tree.TipNames(); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Fatalf("unexpected tip names: %v", got)
	}
}

func TestEdgesIncludeRoot(t *testing.T) {
	tree := mustParse(t, "((a,b)x,c);")

	withRoot := tree.EdgeNames(true)
	if len(withRoot) != 5 || withRoot[len(withRoot)-1] != "root" {
		t.Fatalf("unexpected edges with root: %v", withRoot)
	}
	withoutRoot := tree.EdgeNames(false)
	if len(withoutRoot) != 4 {
		t.Fatalf("unexpected edges without root: %v", withoutRoot)
	}
}

func TestFromTipNamesBuildsStarTree(t *testing.T) {
	tree, err := FromTipNames([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("from tip names: %v", err)
	}
	if got := tree.EdgeNames(false); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected star edges: %v", got)
	}
}

func TestConnectingNode(t *testing.T) {
	tree := mustParse(t, "((a,b)x,(c,d)y);")

	join, err := tree.ConnectingNode("a", "b")
	if err != nil {
		t.Fatalf("connecting node: %v", err)
	}
	if join.Name != "x" {
		t.Fatalf("unexpected connecting node: %s", join.Name)
	}

	join, err = tree.ConnectingNode("a", "c")
	if err != nil {
		t.Fatalf("connecting node: %v", err)
	}
	if join != tree.Root() {
		t.Fatalf("expected root, got %s", join.Name)
	}

	if _, err := tree.ConnectingNode("a", "missing"); err == nil {
		t.Fatal("expected missing node error")
	}
}

func TestSubtreeEdgeNames(t *testing.T) {
	tree := mustParse(t, "((a,b)x,(c,d)y);")

	cases := []struct {
		name     string
		tip1     string
		tip2     string
		stem     bool
		clade    bool
		expected []string
	}{
		{name: "clade of sibling tips", tip1: "a", tip2: "b", clade: true, expected: []string{"a", "b"}},
		{name: "stem of sibling tips", tip1: "a", tip2: "b", stem: true, expected: []string{"x"}},
		{name: "stem and clade", tip1: "a", tip2: "b", stem: true, clade: true, expected: []string{"x", "a", "b"}},
		{name: "clade at root covers everything", tip1: "a", tip2: "d", clade: true, expected: []string{"x", "a", "b", "y", "c", "d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tree.SubtreeEdgeNames(tc.tip1, tc.tip2, tc.stem, tc.clade, "")
			if err != nil {
				t.Fatalf("subtree edge names: %v", err)
			}
			if !reflect.DeepEqual(got, tc.expected) {
				t.Fatalf("unexpected names: got=%v want=%v", got, tc.expected)
			}
		})
	}
}

func TestSubtreeEdgeNamesStemAtRootFails(t *testing.T) {
	tree := mustParse(t, "((a,b)x,(c,d)y);")
	if _, err := tree.SubtreeEdgeNames("a", "c", true, false, ""); err == nil {
		t.Fatal("expected stem-at-root error")
	}
}

func TestSubtreeEdgeNamesWithOutgroup(t *testing.T) {
	tree := mustParse(t, "((a,b)x,(c,d)y);")

	got, err := tree.SubtreeEdgeNames("b", "c", false, true, "a")
	if err != nil {
		t.Fatalf("subtree edge names with outgroup: %v", err)
	}
	expected := []string{"b", "y", "c", "d"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected names: got=%v want=%v", got, expected)
	}

	if _, err := tree.SubtreeEdgeNames("b", "c", false, true, "x"); err == nil {
		t.Fatal("expected non-tip outgroup error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tree := mustParse(t, "((a:0.1,b:0.2)x:0.05,c:0.3);")
	a, _ := tree.Node("a")
	a.SetParam("beta", 2.0)

	clone := tree.Clone()
	cloneA, ok := clone.Node("a")
	if !ok {
		t.Fatal("expected cloned node a")
	}
	if cloneA.Params["beta"] != 2.0 {
		t.Fatalf("expected cloned param, got %v", cloneA.Params)
	}

	cloneA.SetParam("beta", 9.0)
	cloneA.SetLength(7.7)
	if a.Params["beta"] != 2.0 {
		t.Fatalf("clone mutated original params: %v", a.Params)
	}
	if *a.Length != 0.1 {
		t.Fatalf("clone mutated original length: %v", *a.Length)
	}
}
