package graph

import "testing"

func TestLeidenTwoDisconnectedCliques(t *testing.T) {
	nodeIDs := []string{"a1", "a2", "b1", "b2"}
	edges := [][2]string{
		{"a1", "a2"},
		{"b1", "b2"},
	}

	communities := leidenDetect(nodeIDs, edges, float64(len(edges)), 2)
	if len(communities) != 2 {
		t.Fatalf("communities = %d, want 2", len(communities))
	}
}

func TestLeidenSingleEdgeBelowMinSize(t *testing.T) {
	nodeIDs := []string{"a1", "a2"}
	edges := [][2]string{{"a1", "a2"}}

	communities := leidenDetect(nodeIDs, edges, float64(len(edges)), 3)
	if len(communities) != 0 {
		t.Fatalf("communities = %d, want 0 (min_size=3 on a single edge)", len(communities))
	}
}

func TestLeidenIsDeterministic(t *testing.T) {
	nodeIDs := []string{"a1", "a2", "a3", "b1", "b2", "b3"}
	edges := [][2]string{
		{"a1", "a2"}, {"a2", "a3"}, {"a1", "a3"},
		{"b1", "b2"}, {"b2", "b3"}, {"b1", "b3"},
		{"a1", "b1"},
	}

	first := leidenDetect(nodeIDs, edges, float64(len(edges)), 2)
	second := leidenDetect(nodeIDs, edges, float64(len(edges)), 2)

	toSets := func(cs []Community) []map[string]bool {
		var sets []map[string]bool
		for _, c := range cs {
			m := make(map[string]bool)
			for _, id := range c.MemberNodeIDs {
				m[id] = true
			}
			sets = append(sets, m)
		}
		return sets
	}

	a, b := toSets(first), toSets(second)
	if len(a) != len(b) {
		t.Fatalf("run 1 produced %d communities, run 2 produced %d", len(a), len(b))
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			t.Fatalf("community %d differs in size between runs", i)
		}
		for id := range a[i] {
			if !b[i][id] {
				t.Fatalf("community %d differs in membership between runs", i)
			}
		}
	}
}
