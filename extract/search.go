package extract

import "strings"

// MaxDepth bounds the deep search. The root sits at depth 0.
const MaxDepth = 6

// preferredKeys are visited before any other mapping key.
var preferredKeys = []string{"text", "content", "parts", "outputs", "outputText", "message", "sections"}

// DeepSearch walks the tree depth-first and returns the first usable string
// leaf. Callable nodes count as leaves. Containers on the current path are
// skipped, so cyclic trees terminate, while a subtree shared by several paths
// is still searched from each of them.
func DeepSearch(root *Node) (string, bool) {
	visited := make(map[*Node]struct{})
	return search(root, 0, visited)
}

func search(n *Node, depth int, visited map[*Node]struct{}) (string, bool) {
	if n == nil || depth > MaxDepth {
		return "", false
	}
	switch n.kind {
	case KindString, KindCallable:
		if s, ok := n.Text(); ok && Usable(s) {
			return strings.TrimSpace(s), true
		}
		return "", false
	case KindSequence:
		if _, seen := visited[n]; seen {
			return "", false
		}
		visited[n] = struct{}{}
		defer delete(visited, n)
		for _, item := range n.items {
			if s, ok := search(item, depth+1, visited); ok {
				return s, true
			}
		}
	case KindMapping:
		if _, seen := visited[n]; seen {
			return "", false
		}
		visited[n] = struct{}{}
		defer delete(visited, n)
		for _, k := range preferredKeys {
			if s, ok := search(n.fields[k], depth+1, visited); ok {
				return s, true
			}
		}
		for _, k := range n.keys {
			if isPreferred(k) {
				continue
			}
			if s, ok := search(n.fields[k], depth+1, visited); ok {
				return s, true
			}
		}
	}
	return "", false
}

func isPreferred(key string) bool {
	for _, k := range preferredKeys {
		if k == key {
			return true
		}
	}
	return false
}
