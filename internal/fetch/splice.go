package fetch

import "threadscope/internal/model"

// FindStub returns the stub with the given id.
func FindStub(nodes []model.Node, id string) (*model.MoreStub, bool) {
	var found *model.MoreStub
	model.Walk(nodes, func(n model.Node, _ int) bool {
		if found != nil {
			return false
		}
		if s, ok := n.(*model.MoreStub); ok && s.ID == id {
			found = s
		}
		return true
	})
	return found, found != nil
}

// Splice replaces the stub with the given id by replacement, in place of the
// stub and in sibling order. The input tree is not modified: only the slices
// and comments on the path to the stub are copied, every other node is shared.
func Splice(nodes []model.Node, stubID string, replacement []model.Node) ([]model.Node, bool) {
	for i, n := range nodes {
		switch v := n.(type) {
		case *model.MoreStub:
			if v.ID != stubID {
				continue
			}
			out := make([]model.Node, 0, len(nodes)-1+len(replacement))
			out = append(out, nodes[:i]...)
			out = append(out, replacement...)
			out = append(out, nodes[i+1:]...)
			return out, true
		case *model.Comment:
			children, ok := Splice(v.Children, stubID, replacement)
			if !ok {
				continue
			}
			cp := *v
			cp.Children = children
			out := make([]model.Node, len(nodes))
			copy(out, nodes)
			out[i] = &cp
			return out, true
		}
	}
	return nodes, false
}
