//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package workflow

// BuildLevels partitions the graph's nodes into execution levels using
// Kahn's algorithm. Every node in a level has all of its dependencies
// satisfied by earlier levels; nodes within one level are independent and
// may run concurrently.
//
// Edges referencing ids absent from the node set are ignored here;
// validation is expected to have rejected them already, but scheduling must
// not fail on them. Returns ErrCycleDetected when not every node can be
// placed into a level.
func BuildLevels(g *Graph) ([][]string, error) {
	ids := g.nodeSet()
	indegree := make(map[string]int, len(ids))
	for id := range ids {
		indegree[id] = 0
	}
	adj := g.outgoing()
	for _, edges := range adj {
		for _, e := range edges {
			indegree[e.Target]++
		}
	}

	// Seed the ready queue with all roots, in definition order so level
	// membership is reproducible across runs.
	var queue []string
	for _, n := range g.Nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	var levels [][]string
	visited := 0
	for len(queue) > 0 {
		level := queue
		levels = append(levels, level)
		visited += len(level)
		queue = nil
		for _, id := range level {
			for _, e := range adj[id] {
				indegree[e.Target]--
				if indegree[e.Target] == 0 {
					queue = append(queue, e.Target)
				}
			}
		}
	}

	if visited != len(ids) {
		return nil, ErrCycleDetected
	}
	return levels, nil
}
