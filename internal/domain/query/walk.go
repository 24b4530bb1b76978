package query

// Clause tags the bool group a node was reached through.
type Clause string

// Clause group tags.
const (
	ClauseRoot    Clause = "root"
	ClauseMust    Clause = "must"
	ClauseShould  Clause = "should"
	ClauseFilter  Clause = "filter"
	ClauseMustNot Clause = "must_not"
)

// Walk visits every node in the tree in depth-first order, passing the path
// of clause tags from the root. Traversal stops descending at MaxDepth;
// nodes below the bound are never visited.
func Walk(n Node, visit func(n Node, path []Clause)) {
	walk(n, []Clause{ClauseRoot}, visit)
}

func walk(n Node, path []Clause, visit func(n Node, path []Clause)) {
	if n == nil || len(path) > MaxDepth {
		return
	}
	visit(n, path)

	b, ok := n.(Bool)
	if !ok {
		return
	}
	groups := []struct {
		clause Clause
		nodes  []Node
	}{
		{ClauseMust, b.Must},
		{ClauseShould, b.Should},
		{ClauseFilter, b.Filter},
		{ClauseMustNot, b.MustNot},
	}
	for _, g := range groups {
		childPath := append(append([]Clause{}, path...), g.clause)
		for _, child := range g.nodes {
			walk(child, childPath, visit)
		}
	}
}
