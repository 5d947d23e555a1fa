package reddit

import (
	"fmt"
	"strings"

	"threadscope/internal/model"
)

// BuildThread maps a comments document: a two-element array whose first
// listing holds the post and whose second holds the comment forest.
func (n Normalizer) BuildThread(d Doc) (model.Thread, error) {
	if !d.IsArray() || d.Len() < 2 {
		return model.Thread{}, malformed("comments document is not a two-part array")
	}
	posts := d.Index(0).Get("data", "children")
	if !posts.IsArray() || posts.Len() == 0 {
		return model.Thread{}, malformed("comments document without post")
	}
	comments := d.Index(1).Get("data", "children")
	if !comments.IsArray() {
		return model.Thread{}, malformed("comments document without comment listing")
	}
	return model.Thread{
		Post:     n.NormalizePost(posts.Index(0)),
		Comments: n.buildNodes(comments),
	}, nil
}

// BuildMoreChildren maps a /api/morechildren response. Reddit returns the
// expanded comments as a flat list; they are re-nested by parent_id and the
// top-level nodes (normally the replies of the stub's parent) are returned in
// response order.
func (n Normalizer) BuildMoreChildren(d Doc) ([]model.Node, error) {
	if errs := d.Get("json", "errors"); errs.Len() > 0 {
		return nil, malformed("morechildren errors: %s", errs.Index(0).Index(0).String())
	}
	things := d.Get("json", "data", "things")
	if !things.IsArray() {
		return nil, malformed("morechildren without json.data.things")
	}

	comments := make(map[string]*model.Comment, things.Len())
	roots := make([]model.Node, 0, things.Len())
	for i, th := range things.Items() {
		node := n.buildNode(th, i)
		if node == nil {
			continue
		}
		data := th.Get("data")
		parent := data.Get("parent_id").String()
		if c, ok := node.(*model.Comment); ok {
			comments[kindComment+"_"+c.ID] = c
		}
		if p, ok := comments[parent]; ok {
			p.Children = append(p.Children, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots, nil
}

// ContinuedReplies extracts the replies of commentID from the thread page
// rooted at that comment (the target of a "continue this thread" stub).
func (n Normalizer) ContinuedReplies(d Doc, commentID string) ([]model.Node, error) {
	th, err := n.BuildThread(d)
	if err != nil {
		return nil, err
	}
	id := strings.TrimPrefix(commentID, kindComment+"_")
	for _, node := range th.Comments {
		if c, ok := node.(*model.Comment); ok && c.ID == id {
			return c.Children, nil
		}
	}
	return nil, malformed("continued thread does not contain comment %s", id)
}

func (n Normalizer) buildNodes(children Doc) []model.Node {
	out := make([]model.Node, 0, children.Len())
	for i, ch := range children.Items() {
		if node := n.buildNode(ch, i); node != nil {
			out = append(out, node)
		}
	}
	return out
}

// buildNode returns nil for kinds that are neither comments nor stubs.
func (n Normalizer) buildNode(ch Doc, pos int) model.Node {
	data := ch.Get("data")
	switch ch.Get("kind").String() {
	case kindComment:
		return n.comment(data)
	case kindMore:
		return moreStub(data, pos)
	}
	return nil
}

func (n Normalizer) comment(d Doc) *model.Comment {
	return &model.Comment{
		ID:           d.Get("id").String(),
		Author:       d.Get("author").String(),
		BodyMarkdown: d.Get("body").String(),
		CreatedAt:    createdAt(d),
		EditedAt:     epochSeconds(d.Get("edited").Float()),
		Score:        int(d.Get("score").Int()),
		PermalinkURL: n.Resolver.Permalink(d.Get("permalink").String()),
		Children:     n.buildNodes(d.Get("replies", "data", "children")),
	}
}

// moreStub keeps the listed ids verbatim; an empty list is still a stub.
// "Continue this thread" stubs all carry the id "_", so those get a
// position-derived id to stay addressable.
func moreStub(d Doc, pos int) *model.MoreStub {
	parent := d.Get("parent_id").String()
	id := d.Get("id").String()
	if id == "" || id == "_" {
		id = fmt.Sprintf("more-%s-%d", strings.TrimPrefix(parent, kindComment+"_"), pos)
	}
	return &model.MoreStub{
		ID:       id,
		ParentID: parent,
		ChildIDs: d.Get("children").Strings(),
		Count:    int(d.Get("count").Int()),
	}
}
