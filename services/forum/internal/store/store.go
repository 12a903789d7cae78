// Package store persists posts, comments and upvotes.
//
// Counters (post.comments_count, comment.comments_count, points) are
// denormalized for read performance. Every mutation that touches a counter
// lists its side-effects explicitly and applies them with atomic
// `col = col + delta` updates inside a single transaction; there is no
// background reconciliation.
package store

import (
	"context"
	"errors"
	"time"
)

// Sort keys and directions accepted by list operations.
const (
	SortRecent = "recent"
	SortPoints = "points"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Sentinel errors. Handlers map these onto the error envelope.
var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrNoPosts         = errors.New("no posts found")
	ErrNoComments      = errors.New("no comments found")

	// ErrConcurrentModification reports a counter update that affected zero
	// rows after the target was already validated inside the transaction.
	ErrConcurrentModification = errors.New("target modified concurrently")
)

// Author is the slice of the external user record attached to responses.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Post is a submission. Points and CommentsCount are maintained by
// ToggleUpvote and AddComment, never written directly.
type Post struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	URL           *string   `json:"url"`
	Content       *string   `json:"content,omitempty"`
	Points        int       `json:"points"`
	CommentsCount int       `json:"commentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
	Author        Author    `json:"author"`
	IsUpvoted     bool      `json:"isUpvoted"`
}

// Comment is a node in the per-post reply tree. Depth is 0 for top-level
// comments and parent.depth+1 otherwise; CommentsCount counts direct children
// only.
type Comment struct {
	ID              int64     `json:"id"`
	AuthorID        string    `json:"userId"`
	PostID          int64     `json:"postId"`
	ParentCommentID *int64    `json:"parentCommentId"`
	Content         string    `json:"content"`
	Depth           int       `json:"depth"`
	CommentsCount   int       `json:"commentsCount"`
	Points          int       `json:"points"`
	CreatedAt       time.Time `json:"createdAt"`
	Author          Author    `json:"author"`
	IsUpvoted       bool      `json:"isUpvoted"`
	Children        []Comment `json:"childComments"`
}

// PageParams selects one page of a sorted result set.
type PageParams struct {
	Page   int
	Limit  int
	SortBy string // SortRecent | SortPoints
	Order  string // OrderAsc | OrderDesc
}

// Normalize fills defaults matching the public API contract.
func (p PageParams) Normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.SortBy != SortRecent {
		p.SortBy = SortPoints
	}
	if p.Order != OrderAsc {
		p.Order = OrderDesc
	}
	return p
}

func (p PageParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages derives the page count for a matching-row total.
func (p PageParams) TotalPages(total int) int {
	return (total + p.Limit - 1) / p.Limit
}

// ListPostsParams filters and pages the post feed. ViewerID annotates each
// post with the viewer's upvote state; empty means anonymous.
type ListPostsParams struct {
	PageParams
	Author   string
	Site     string
	ViewerID string
}

// PostStore owns posts and every operation whose counter side-effects stop at
// the post row.
type PostStore interface {
	// Create inserts a post and returns its id. Empty url/content are stored
	// as NULL; validation happens before the store is reached.
	Create(ctx context.Context, authorID, title, url, content string) (int64, error)

	// List returns one page of posts plus the total page count.
	// An empty page yields ErrNoPosts.
	List(ctx context.Context, p ListPostsParams) ([]Post, int, error)

	// Get fetches a single post annotated for the viewer.
	Get(ctx context.Context, postID int64, viewerID string) (Post, error)

	// ToggleUpvote casts the user's upvote if absent, retracts it otherwise.
	// Returns the post's points after the change and whether the net state is
	// upvoted. The vote-row check, the row mutation and the atomic points
	// update share one transaction.
	ToggleUpvote(ctx context.Context, postID int64, userID string) (int, bool, error)

	// AddComment inserts a top-level comment and increments the post's
	// comments_count in the same transaction.
	AddComment(ctx context.Context, postID int64, author Author, content string) (Comment, error)

	// ListComments returns one page of the post's top-level comments. With
	// includeChildren, each carries at most 2 direct children (same ordering)
	// and never grandchildren. A zero comment count yields ErrNoComments.
	ListComments(ctx context.Context, postID int64, p PageParams, includeChildren bool, viewerID string) ([]Comment, int, error)
}

// CommentStore owns replies and comment votes; Reply's counter side-effects
// reach the immediate parent and the owning post, intentionally skipping
// intermediate ancestors.
type CommentStore interface {
	Reply(ctx context.Context, parentCommentID int64, author Author, content string) (Comment, error)
	ToggleUpvote(ctx context.Context, commentID int64, userID string) (int, bool, error)
	ListReplies(ctx context.Context, parentCommentID int64, p PageParams, viewerID string) ([]Comment, int, error)
}
