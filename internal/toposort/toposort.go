package toposort

import (
	"bytes"
	"fmt"
	"sort"
)

// Graph is the directed graph of pipeline items and the entities they exchange.
// Node names are kept sorted wherever the order is otherwise arbitrary, so every
// traversal is deterministic.
type Graph struct {
	// children of every node
	outputs map[string]map[string]struct{}
	// number of parents of every node
	inputs map[string]int
}

// NewGraph initializes a new Graph.
func NewGraph() *Graph {
	return &Graph{
		inputs:  map[string]int{},
		outputs: map[string]map[string]struct{}{},
	}
}

// AddNode inserts a new node into the graph. Returns false if the node already exists.
func (g *Graph) AddNode(name string) bool {
	if _, exists := g.outputs[name]; exists {
		return false
	}
	g.outputs[name] = map[string]struct{}{}
	g.inputs[name] = 0
	return true
}

// AddNodes inserts multiple nodes into the graph at once.
func (g *Graph) AddNodes(names ...string) bool {
	for _, name := range names {
		if !g.AddNode(name) {
			return false
		}
	}
	return true
}

// AddEdge inserts the link from "from" node to "to" node.
// Returns the number of parents of "to" after the insertion, or 0 if either node is missing.
func (g *Graph) AddEdge(from, to string) int {
	children, exists := g.outputs[from]
	if !exists {
		return 0
	}
	if _, exists := g.inputs[to]; !exists {
		return 0
	}
	if _, linked := children[to]; !linked {
		children[to] = struct{}{}
		g.inputs[to]++
	}
	return g.inputs[to]
}

// RemoveEdge deletes the link from "from" node to "to" node.
func (g *Graph) RemoveEdge(from, to string) bool {
	children, exists := g.outputs[from]
	if !exists {
		return false
	}
	if _, linked := children[to]; !linked {
		return false
	}
	delete(children, to)
	g.inputs[to]--
	return true
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.outputs)
}

// Toposort sorts the nodes in the graph in topological order (Kahn). Ready nodes are
// taken alphabetically. The second result is false if the graph has a cycle; the returned
// slice then holds only the nodes which could be ordered.
func (g *Graph) Toposort() ([]string, bool) {
	result := make([]string, 0, len(g.outputs))
	remaining := make(map[string]int, len(g.inputs))
	var ready []string
	for node, n := range g.inputs {
		remaining[node] = n
		if n == 0 {
			ready = append(ready, node)
		}
	}
	sort.Strings(ready)
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		result = append(result, node)
		var unlocked []string
		for child := range g.outputs[node] {
			remaining[child]--
			if remaining[child] == 0 {
				unlocked = append(unlocked, child)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sort.Strings(ready)
		}
	}
	return result, len(result) == len(g.outputs)
}

// FindCycle returns the cycle in the graph which contains "seed" node, or an empty slice.
func (g *Graph) FindCycle(seed string) []string {
	parents := map[string]string{}
	queue := []string{seed}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, child := range g.FindChildren(node) {
			if child == seed {
				cycle := []string{node}
				for cycle[len(cycle)-1] != seed {
					cycle = append(cycle, parents[cycle[len(cycle)-1]])
				}
				for left, right := 0, len(cycle)-1; left < right; left, right = left+1, right-1 {
					cycle[left], cycle[right] = cycle[right], cycle[left]
				}
				return cycle
			}
			if _, visited := parents[child]; !visited {
				parents[child] = node
				queue = append(queue, child)
			}
		}
	}
	return []string{}
}

// FindParents returns the other ends of incoming edges.
func (g *Graph) FindParents(to string) []string {
	var result []string
	for node, children := range g.outputs {
		if _, exists := children[to]; exists {
			result = append(result, node)
		}
	}
	sort.Strings(result)
	return result
}

// FindChildren returns the other ends of outgoing edges.
func (g *Graph) FindChildren(from string) []string {
	var result []string
	for child := range g.outputs[from] {
		result = append(result, child)
	}
	sort.Strings(result)
	return result
}

// Serialize outputs the graph in Graphviz format. Every node is prefixed with its position
// in `sorted`.
func (g *Graph) Serialize(sorted []string) string {
	position := map[string]int{}
	for i, node := range sorted {
		position[node] = i
	}
	var nodes []string
	for node := range g.outputs {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	var buffer bytes.Buffer
	buffer.WriteString("digraph CITheater {\n")
	for _, from := range nodes {
		for _, to := range g.FindChildren(from) {
			fmt.Fprintf(&buffer, "  \"%d %s\" -> \"%d %s\"\n", position[from], from, position[to], to)
		}
	}
	buffer.WriteString("}")
	return buffer.String()
}
