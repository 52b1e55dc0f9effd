package extract

// Kind identifies which variant a Node holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindSequence
	KindMapping
	KindCallable
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindCallable:
		return "callable"
	default:
		return "null"
	}
}

// Node is one element of a generation response tree. The shape of the tree is
// not fixed by the provider, so every accessor tolerates a nil receiver or a
// node of the wrong kind and returns a zero value instead of failing.
type Node struct {
	kind   Kind
	str    string
	items  []*Node
	keys   []string
	fields map[string]*Node
	call   func() (string, error)
}

// Null returns an explicit null node.
func Null() *Node { return &Node{kind: KindNull} }

// String returns a string leaf.
func String(s string) *Node { return &Node{kind: KindString, str: s} }

// Sequence returns a sequence of the given nodes.
func Sequence(items ...*Node) *Node {
	return &Node{kind: KindSequence, items: items}
}

// Mapping returns an empty keyed node. Use Set to populate it.
func Mapping() *Node {
	return &Node{kind: KindMapping, fields: make(map[string]*Node)}
}

// Callable returns a node exposing a zero-argument text accessor.
func Callable(fn func() (string, error)) *Node {
	return &Node{kind: KindCallable, call: fn}
}

// Set stores child under key and returns n so calls can be chained.
// Keys keep their insertion order. Set on a non-mapping node is a no-op.
func (n *Node) Set(key string, child *Node) *Node {
	if n == nil || n.kind != KindMapping {
		return n
	}
	if _, ok := n.fields[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = child
	return n
}

// Append adds items to a sequence node. It is a no-op for other kinds.
func (n *Node) Append(items ...*Node) *Node {
	if n == nil || n.kind != KindSequence {
		return n
	}
	n.items = append(n.items, items...)
	return n
}

func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// Get returns the child stored under key, or nil.
func (n *Node) Get(key string) *Node {
	if n == nil || n.kind != KindMapping {
		return nil
	}
	return n.fields[key]
}

// Path follows a chain of mapping keys.
func (n *Node) Path(keys ...string) *Node {
	cur := n
	for _, k := range keys {
		cur = cur.Get(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Keys returns mapping keys in insertion order.
func (n *Node) Keys() []string {
	if n == nil || n.kind != KindMapping {
		return nil
	}
	return n.keys
}

// Items returns the elements of a sequence node.
func (n *Node) Items() []*Node {
	if n == nil || n.kind != KindSequence {
		return nil
	}
	return n.items
}

// Text returns the scalar text of a string or callable node. Mappings,
// sequences and nulls report ok=false. A callable that errors or panics
// also reports ok=false.
func (n *Node) Text() (s string, ok bool) {
	switch n.Kind() {
	case KindString:
		return n.str, true
	case KindCallable:
		return n.invoke()
	default:
		return "", false
	}
}

func (n *Node) invoke() (s string, ok bool) {
	if n.call == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			s, ok = "", false
		}
	}()
	out, err := n.call()
	if err != nil {
		return "", false
	}
	return out, true
}
