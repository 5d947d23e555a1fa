package model

// Node is an entry of a comment tree: either a *Comment or a *MoreStub.
type Node interface {
	node()
}

// Comment is a rendered reply. Children keep the order the remote returned.
type Comment struct {
	ID           string `json:"id"`
	Author       string `json:"author"`
	BodyMarkdown string `json:"body_markdown"`
	CreatedAt    int64  `json:"created_at"`
	EditedAt     int64  `json:"edited_at,omitempty"` // 0 when never edited
	Score        int    `json:"score"`
	PermalinkURL string `json:"permalink_url"`
	Children     []Node `json:"children"`
}

// MoreStub marks replies that have not been fetched yet. It is not a comment.
// A stub with Count 0 and no ChildIDs still occupies its position in the tree.
type MoreStub struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	ChildIDs []string `json:"child_ids"`
	Count    int      `json:"count"`
}

func (*Comment) node()  {}
func (*MoreStub) node() {}

// Thread is a post together with its comment tree.
type Thread struct {
	Post     Post   `json:"post"`
	Comments []Node `json:"comments"`
}

// Walk visits nodes depth-first in tree order. Returning false from fn stops
// descent into that node's children.
func Walk(nodes []Node, fn func(n Node, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []Node, depth int, fn func(Node, int) bool) {
	for _, n := range nodes {
		if !fn(n, depth) {
			continue
		}
		if c, ok := n.(*Comment); ok {
			walk(c.Children, depth+1, fn)
		}
	}
}

// Stubs returns every MoreStub in the tree in tree order.
func Stubs(nodes []Node) []*MoreStub {
	var out []*MoreStub
	Walk(nodes, func(n Node, _ int) bool {
		if s, ok := n.(*MoreStub); ok {
			out = append(out, s)
		}
		return true
	})
	return out
}
