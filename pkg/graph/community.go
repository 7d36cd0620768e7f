package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Community is one output group of a community-detection run (spec.md
// §4.2).
type Community struct {
	ID              string
	MemberNodeIDs   []string
	Density         float64
	Level           int
	Modularity      float64
	ParentCommunity *string
}

// DetectCommunities runs the Leiden-style local-move/merge procedure over
// the tenant's non-deleted subgraph and returns one Community per group with
// at least minCommunitySize members. Deterministic: identical input always
// yields identical output (fixed iteration order, stable tie-break).
func (s *Service) DetectCommunities(ctx context.Context, tctx Ctx, minCommunitySize int) ([]Community, error) {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return nil, err
	}

	nodes, err := s.nodes.AllNodes(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading nodes: %w", err)
	}
	edges, err := s.nodes.AllEdges(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading edges: %w", err)
	}

	nodeIDs := make([]string, len(nodes))
	for i, n := range nodes {
		nodeIDs[i] = n.ID
	}
	pairs := make([][2]string, len(edges))
	for i, e := range edges {
		pairs[i] = [2]string{e.SourceID, e.TargetID}
	}

	return leidenDetect(nodeIDs, pairs, float64(len(edges)), minCommunitySize), nil
}

// leidenDetect is a direct, deterministic port of the reference
// implementation's local-move + pairwise-merge procedure. totalEdgeWeight is
// the sum of edge weights (here: edge count, since every edge contributes
// weight 1 to both endpoints' degree).
func leidenDetect(nodeIDs []string, edges [][2]string, totalEdgeWeight float64, minCommunitySize int) []Community {
	n := len(nodeIDs)
	if n == 0 || totalEdgeWeight == 0 {
		return nil
	}

	twoM := 2.0 * totalEdgeWeight

	idxOf := make(map[string]int, n)
	for i, id := range nodeIDs {
		idxOf[id] = i
	}

	adj := make([][]neighborWeight, n)
	for _, e := range edges {
		si, sok := idxOf[e[0]]
		ti, tok := idxOf[e[1]]
		if !sok || !tok {
			continue
		}
		adj[si] = append(adj[si], neighborWeight{ti, 1.0})
		adj[ti] = append(adj[ti], neighborWeight{si, 1.0})
	}

	k := make([]float64, n)
	for i := range adj {
		for _, nw := range adj[i] {
			k[i] += nw.weight
		}
	}

	community := make([]int, n)
	for i := range community {
		community[i] = i
	}

	const maxIterations = 10
	for iter := 0; iter < maxIterations; iter++ {
		improved := localMovePhase(n, adj, k, community, twoM)
		if !improved {
			break
		}
	}

	mergeCommunities(n, adj, k, community, twoM)

	return collectCommunities(nodeIDs, edges, adj, k, idxOf, community, twoM, minCommunitySize)
}

type neighborWeight struct {
	idx    int
	weight float64
}

// localMovePhase runs the fixed-point local-move sweep once to completion
// and reports whether any node moved during the whole phase.
func localMovePhase(n int, adj [][]neighborWeight, k []float64, community []int, twoM float64) bool {
	improvedOverall := false
	changed := true
	for changed {
		changed = false
		for node := 0; node < n; node++ {
			currentComm := community[node]

			commWeights := make(map[int]float64)
			for _, nw := range adj[node] {
				commWeights[community[nw.idx]] += nw.weight
			}

			sigmaTot := make(map[int]float64)
			for i := 0; i < n; i++ {
				sigmaTot[community[i]] += k[i]
			}

			ki := k[node]
			kiInCurrent := commWeights[currentComm]
			sigmaCurrent := sigmaTot[currentComm] - ki
			removeCost := kiInCurrent/twoM - (sigmaCurrent*ki)/(twoM*twoM)

			type candidate struct {
				comm int
				gain float64
			}
			var candidates []candidate
			for cc, kiInCandidate := range commWeights {
				if cc == currentComm {
					continue
				}
				sigmaCandidate := sigmaTot[cc]
				addGain := kiInCandidate/twoM - (sigmaCandidate*ki)/(twoM*twoM)
				candidates = append(candidates, candidate{cc, addGain - removeCost})
			}
			sort.Slice(candidates, func(i, j int) bool {
				if candidates[i].gain != candidates[j].gain {
					return candidates[i].gain > candidates[j].gain
				}
				return candidates[i].comm < candidates[j].comm
			})

			bestComm := currentComm
			if len(candidates) > 0 && candidates[0].gain > 0.0 {
				bestComm = candidates[0].comm
			}

			if bestComm != currentComm {
				community[node] = bestComm
				changed = true
				improvedOverall = true
			}
		}
	}
	return improvedOverall
}

// mergeCommunities repeatedly merges any pair of communities whose combined
// modularity gain is non-negative, in ascending community-id order, until a
// fixed point.
func mergeCommunities(n int, adj [][]neighborWeight, k []float64, community []int, twoM float64) {
	uniqueSet := make(map[int]bool)
	for _, c := range community {
		uniqueSet[c] = true
	}
	if len(uniqueSet) <= 1 {
		return
	}
	var commList []int
	for c := range uniqueSet {
		commList = append(commList, c)
	}
	sort.Ints(commList)

	merged := true
	for merged {
		merged = false
	outer:
		for i := 0; i < len(commList); i++ {
			for j := i + 1; j < len(commList); j++ {
				ca, cb := commList[i], commList[j]

				var membersA, membersB []int
				for x := 0; x < n; x++ {
					switch community[x] {
					case ca:
						membersA = append(membersA, x)
					case cb:
						membersB = append(membersB, x)
					}
				}

				inB := make(map[int]bool, len(membersB))
				for _, b := range membersB {
					inB[b] = true
				}

				var cross float64
				for _, a := range membersA {
					for _, nw := range adj[a] {
						if inB[nw.idx] {
							cross += nw.weight
						}
					}
				}

				var sa, sb float64
				for _, a := range membersA {
					sa += k[a]
				}
				for _, b := range membersB {
					sb += k[b]
				}

				deltaQ := cross/twoM - (sa*sb)/(twoM*twoM)
				if sa > 0 && sb > 0 && deltaQ >= 0 {
					for x := 0; x < n; x++ {
						if community[x] == cb {
							community[x] = ca
						}
					}
					commList = append(commList[:j], commList[j+1:]...)
					merged = true
					break outer
				}
			}
		}
	}
}

func collectCommunities(nodeIDs []string, edges [][2]string, adj [][]neighborWeight, k []float64, idxOf map[string]int, community []int, twoM float64, minCommunitySize int) []Community {
	membersByComm := make(map[int][]string)
	for i, c := range community {
		membersByComm[c] = append(membersByComm[c], nodeIDs[i])
	}

	// Stable output order: by community id ascending.
	var commIDs []int
	for c := range membersByComm {
		commIDs = append(commIDs, c)
	}
	sort.Ints(commIDs)

	var out []Community
	for _, c := range commIDs {
		members := membersByComm[c]
		if len(members) < minCommunitySize {
			continue
		}

		memberSet := make(map[string]bool, len(members))
		for _, m := range members {
			memberSet[m] = true
		}

		var internalEdges int
		for _, e := range edges {
			if memberSet[e[0]] && memberSet[e[1]] {
				internalEdges++
			}
		}

		nm := len(members)
		maxEdges := 1
		if nm > 1 {
			maxEdges = nm * (nm - 1) / 2
		}
		density := float64(internalEdges) / float64(maxEdges)

		modularity := communityModularity(memberSet, adj, k, idxOf, twoM)

		out = append(out, Community{
			ID:            uuid.NewString(),
			MemberNodeIDs: members,
			Density:       density,
			Level:         0,
			Modularity:    modularity,
		})
	}

	return out
}

func communityModularity(memberSet map[string]bool, adj [][]neighborWeight, k []float64, idxOf map[string]int, twoM float64) float64 {
	idxToID := make(map[int]string, len(idxOf))
	for id, idx := range idxOf {
		idxToID[idx] = id
	}

	var q float64
	for nodeID := range memberSet {
		i, ok := idxOf[nodeID]
		if !ok {
			continue
		}
		for _, nw := range adj[i] {
			neighborID, ok := idxToID[nw.idx]
			if !ok || !memberSet[neighborID] {
				continue
			}
			q += nw.weight - (k[i]*k[nw.idx])/twoM
		}
	}
	return q / twoM
}
