package main

import "sort"

// Reachable returns the occupied cells connected to the origin through
// occupied cardinal neighbours. It does not modify the grid.
func Reachable(g *Grid) map[Pos]struct{} {
	visited := make(map[Pos]struct{}, len(g.cells))
	queue := make([]Pos, 0, len(g.cells))

	for _, d := range cardinals {
		n := Origin.add(d)
		if _, ok := g.cells[n]; ok {
			visited[n] = struct{}{}
			queue = append(queue, n)
		}
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range cardinals {
			n := p.add(d)
			if n == Origin {
				continue
			}
			if _, seen := visited[n]; seen {
				continue
			}
			if _, ok := g.cells[n]; ok {
				visited[n] = struct{}{}
				queue = append(queue, n)
			}
		}
	}
	return visited
}

// Disconnected returns the occupied cells that Reachable does not reach,
// in scan order.
func Disconnected(g *Grid) []Pos {
	reach := Reachable(g)
	var out []Pos
	for p := range g.cells {
		if _, ok := reach[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return scanLess(out[i], out[j]) })
	return out
}
