package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

var (
	_ PostStore    = (*PostgresPostStore)(nil)
	_ CommentStore = (*PostgresCommentStore)(nil)
	_ PostStore    = memoryPosts{}
	_ CommentStore = memoryComments{}
)

func newTestStore(t *testing.T) *InMemoryStore {
	t.Helper()
	s := NewInMemoryStore()
	s.PutUser("u1", "alice")
	s.PutUser("u2", "bob")
	return s
}

func TestCreateAndGetPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Posts().Create(ctx, "u1", "Show: a thing", "https://example.com/thing", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	p, err := s.Posts().Get(ctx, id, "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Title != "Show: a thing" {
		t.Errorf("title = %q", p.Title)
	}
	if p.URL == nil || *p.URL != "https://example.com/thing" {
		t.Errorf("url = %v", p.URL)
	}
	if p.Content != nil {
		t.Errorf("content should be nil, got %v", *p.Content)
	}
	if p.Points != 0 || p.CommentsCount != 0 {
		t.Errorf("fresh post counters: points=%d comments=%d", p.Points, p.CommentsCount)
	}
	if p.Author.Name != "alice" {
		t.Errorf("author name = %q", p.Author.Name)
	}

	if _, err := s.Posts().Get(ctx, 999, ""); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("missing post: got %v, want ErrPostNotFound", err)
	}
}

func TestTogglePostUpvote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Posts().Create(ctx, "u1", "toggle target", "", "body")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	points, upvoted, err := s.Posts().ToggleUpvote(ctx, id, "u2")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if points != 1 || !upvoted {
		t.Errorf("first toggle: points=%d upvoted=%v, want 1 true", points, upvoted)
	}

	points, upvoted, err = s.Posts().ToggleUpvote(ctx, id, "u2")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if points != 0 || upvoted {
		t.Errorf("second toggle: points=%d upvoted=%v, want 0 false", points, upvoted)
	}

	if _, _, err := s.Posts().ToggleUpvote(ctx, 999, "u2"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("missing post: got %v, want ErrPostNotFound", err)
	}
}

func TestDistinctVotersAccumulate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Posts().Create(ctx, "u1", "popular", "", "body")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const voters = 5
	for i := 0; i < voters; i++ {
		if _, _, err := s.Posts().ToggleUpvote(ctx, id, fmt.Sprintf("voter-%d", i)); err != nil {
			t.Fatalf("toggle voter %d: %v", i, err)
		}
	}

	p, err := s.Posts().Get(ctx, id, "voter-0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Points != voters {
		t.Errorf("points = %d, want %d", p.Points, voters)
	}
	if !p.IsUpvoted {
		t.Error("voter-0 should see isUpvoted")
	}

	other, err := s.Posts().Get(ctx, id, "u2")
	if err != nil {
		t.Fatalf("Get as non-voter: %v", err)
	}
	if other.IsUpvoted {
		t.Error("non-voter should not see isUpvoted")
	}

	// one voter retracts
	if points, _, err := s.Posts().ToggleUpvote(ctx, id, "voter-0"); err != nil || points != voters-1 {
		t.Errorf("retract: points=%d err=%v, want %d nil", points, err, voters-1)
	}
}

func TestAddCommentMaintainsCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	postID, err := s.Posts().Create(ctx, "u1", "countered", "", "body")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	root, err := s.Posts().AddComment(ctx, postID, Author{ID: "u2", Name: "bob"}, "top level")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if root.Depth != 0 {
		t.Errorf("root depth = %d", root.Depth)
	}
	if root.ParentCommentID != nil {
		t.Errorf("root parent = %v", *root.ParentCommentID)
	}

	child, err := s.Comments().Reply(ctx, root.ID, Author{ID: "u1", Name: "alice"}, "first reply")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if child.Depth != 1 {
		t.Errorf("child depth = %d", child.Depth)
	}
	if child.PostID != postID {
		t.Errorf("child post = %d, want %d", child.PostID, postID)
	}

	grand, err := s.Comments().Reply(ctx, child.ID, Author{ID: "u2", Name: "bob"}, "nested reply")
	if err != nil {
		t.Fatalf("nested Reply: %v", err)
	}
	if grand.Depth != 2 {
		t.Errorf("grandchild depth = %d", grand.Depth)
	}

	// The post counts every comment in its thread. A comment counts only its
	// direct replies: the grandchild must not bump the root.
	p, err := s.Posts().Get(ctx, postID, "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.CommentsCount != 3 {
		t.Errorf("post commentsCount = %d, want 3", p.CommentsCount)
	}

	roots, _, err := s.Posts().ListComments(ctx, postID, PageParams{}, false, "")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(roots))
	}
	if roots[0].CommentsCount != 1 {
		t.Errorf("root commentsCount = %d, want 1", roots[0].CommentsCount)
	}

	if _, err := s.Comments().Reply(ctx, 999, Author{ID: "u1"}, "orphan"); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("reply to missing comment: got %v, want ErrCommentNotFound", err)
	}
	if _, err := s.Posts().AddComment(ctx, 999, Author{ID: "u1"}, "orphan"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("comment on missing post: got %v, want ErrPostNotFound", err)
	}
}

func TestToggleCommentUpvote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	postID, _ := s.Posts().Create(ctx, "u1", "p", "", "body")
	c, err := s.Posts().AddComment(ctx, postID, Author{ID: "u1", Name: "alice"}, "vote on me")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	points, upvoted, err := s.Comments().ToggleUpvote(ctx, c.ID, "u2")
	if err != nil || points != 1 || !upvoted {
		t.Errorf("toggle: points=%d upvoted=%v err=%v", points, upvoted, err)
	}
	points, upvoted, err = s.Comments().ToggleUpvote(ctx, c.ID, "u2")
	if err != nil || points != 0 || upvoted {
		t.Errorf("toggle back: points=%d upvoted=%v err=%v", points, upvoted, err)
	}

	if _, _, err := s.Comments().ToggleUpvote(ctx, 999, "u2"); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("missing comment: got %v, want ErrCommentNotFound", err)
	}
}

func TestListPostsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const total = 25
	ids := make(map[int64]bool, total)
	for i := 0; i < total; i++ {
		id, err := s.Posts().Create(ctx, "u1", fmt.Sprintf("post %02d", i), "", "body")
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		ids[id] = true
	}

	seen := make(map[int64]bool, total)
	for page := 1; ; page++ {
		posts, totalPages, err := s.Posts().List(ctx, ListPostsParams{
			PageParams: PageParams{Page: page, Limit: 10},
		})
		if errors.Is(err, ErrNoPosts) {
			break
		}
		if err != nil {
			t.Fatalf("List page %d: %v", page, err)
		}
		if totalPages != 3 {
			t.Errorf("page %d: totalPages = %d, want 3", page, totalPages)
		}
		for _, p := range posts {
			if seen[p.ID] {
				t.Errorf("post %d appeared twice", p.ID)
			}
			seen[p.ID] = true
		}
		if page > 10 {
			t.Fatal("pagination never terminated")
		}
	}
	if len(seen) != total {
		t.Errorf("saw %d posts across pages, want %d", len(seen), total)
	}
	for id := range ids {
		if !seen[id] {
			t.Errorf("post %d missing from pages", id)
		}
	}
}

func TestListPostsSortAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Posts().Create(ctx, "u1", "low", "https://a.example", "")
	b, _ := s.Posts().Create(ctx, "u2", "high", "https://b.example", "")
	for i := 0; i < 3; i++ {
		s.Posts().ToggleUpvote(ctx, b, fmt.Sprintf("v%d", i))
	}
	s.Posts().ToggleUpvote(ctx, a, "v0")

	posts, _, err := s.Posts().List(ctx, ListPostsParams{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if posts[0].ID != b || posts[1].ID != a {
		t.Errorf("points desc order = [%d %d], want [%d %d]", posts[0].ID, posts[1].ID, b, a)
	}

	posts, _, err = s.Posts().List(ctx, ListPostsParams{
		PageParams: PageParams{SortBy: SortRecent, Order: OrderAsc},
	})
	if err != nil {
		t.Fatalf("List recent asc: %v", err)
	}
	if posts[0].ID != a {
		t.Errorf("recent asc first = %d, want %d", posts[0].ID, a)
	}

	posts, _, err = s.Posts().List(ctx, ListPostsParams{Author: "u2"})
	if err != nil {
		t.Fatalf("List by author: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != b {
		t.Errorf("author filter = %v", posts)
	}

	posts, _, err = s.Posts().List(ctx, ListPostsParams{Site: "https://a.example"})
	if err != nil {
		t.Fatalf("List by site: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != a {
		t.Errorf("site filter = %v", posts)
	}

	if _, _, err := s.Posts().List(ctx, ListPostsParams{Author: "nobody"}); !errors.Is(err, ErrNoPosts) {
		t.Errorf("empty filter result: got %v, want ErrNoPosts", err)
	}
}

func TestListCommentsChildPreview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	postID, _ := s.Posts().Create(ctx, "u1", "threaded", "", "body")
	root, err := s.Posts().AddComment(ctx, postID, Author{ID: "u1", Name: "alice"}, "root")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	var kids []Comment
	for i := 0; i < 4; i++ {
		k, err := s.Comments().Reply(ctx, root.ID, Author{ID: "u2", Name: "bob"}, fmt.Sprintf("reply %d", i))
		if err != nil {
			t.Fatalf("Reply %d: %v", i, err)
		}
		kids = append(kids, k)
	}
	// a grandchild must never show up in the preview
	if _, err := s.Comments().Reply(ctx, kids[0].ID, Author{ID: "u1", Name: "alice"}, "nested"); err != nil {
		t.Fatalf("nested Reply: %v", err)
	}

	comments, _, err := s.Posts().ListComments(ctx, postID, PageParams{}, true, "")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("roots = %d, want 1", len(comments))
	}
	if got := len(comments[0].Children); got != 2 {
		t.Errorf("child preview = %d, want 2", got)
	}
	for _, child := range comments[0].Children {
		if len(child.Children) != 0 {
			t.Errorf("child %d carries grandchildren", child.ID)
		}
	}

	// without the flag the preview stays empty
	comments, _, err = s.Posts().ListComments(ctx, postID, PageParams{}, false, "")
	if err != nil {
		t.Fatalf("ListComments without children: %v", err)
	}
	if len(comments[0].Children) != 0 {
		t.Errorf("children = %d, want 0", len(comments[0].Children))
	}
}

func TestListCommentsErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.Posts().ListComments(ctx, 999, PageParams{}, false, ""); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("missing post: got %v, want ErrPostNotFound", err)
	}

	postID, _ := s.Posts().Create(ctx, "u1", "quiet", "", "body")
	if _, _, err := s.Posts().ListComments(ctx, postID, PageParams{}, false, ""); !errors.Is(err, ErrNoComments) {
		t.Errorf("no comments: got %v, want ErrNoComments", err)
	}

	if _, _, err := s.Comments().ListReplies(ctx, 999, PageParams{}, ""); !errors.Is(err, ErrNoComments) {
		t.Errorf("no replies: got %v, want ErrNoComments", err)
	}
}

func TestListReplies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	postID, _ := s.Posts().Create(ctx, "u1", "threaded", "", "body")
	root, _ := s.Posts().AddComment(ctx, postID, Author{ID: "u1", Name: "alice"}, "root")

	var ids []int64
	for i := 0; i < 3; i++ {
		r, err := s.Comments().Reply(ctx, root.ID, Author{ID: "u2", Name: "bob"}, fmt.Sprintf("reply %d", i))
		if err != nil {
			t.Fatalf("Reply %d: %v", i, err)
		}
		ids = append(ids, r.ID)
	}
	s.Comments().ToggleUpvote(ctx, ids[1], "u1")

	replies, totalPages, err := s.Comments().ListReplies(ctx, root.ID, PageParams{}, "u1")
	if err != nil {
		t.Fatalf("ListReplies: %v", err)
	}
	if totalPages != 1 {
		t.Errorf("totalPages = %d, want 1", totalPages)
	}
	if len(replies) != 3 {
		t.Fatalf("replies = %d, want 3", len(replies))
	}
	// default points desc: the upvoted reply leads
	if replies[0].ID != ids[1] {
		t.Errorf("first reply = %d, want %d", replies[0].ID, ids[1])
	}
	if !replies[0].IsUpvoted {
		t.Error("voter should see isUpvoted on their reply vote")
	}
	if replies[1].IsUpvoted || replies[2].IsUpvoted {
		t.Error("unvoted replies must not be marked upvoted")
	}
}

func TestPageParamsNormalize(t *testing.T) {
	p := PageParams{}.Normalize()
	if p.Page != 1 || p.Limit != 10 || p.SortBy != SortPoints || p.Order != OrderDesc {
		t.Errorf("defaults = %+v", p)
	}

	p = PageParams{Page: 3, Limit: 5, SortBy: SortRecent, Order: OrderAsc}.Normalize()
	if p.Offset() != 10 {
		t.Errorf("offset = %d, want 10", p.Offset())
	}
	if got := p.TotalPages(11); got != 3 {
		t.Errorf("TotalPages(11) = %d, want 3", got)
	}
	if got := p.TotalPages(10); got != 2 {
		t.Errorf("TotalPages(10) = %d, want 2", got)
	}
}
