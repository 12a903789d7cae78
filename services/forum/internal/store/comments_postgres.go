package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCommentStore persists comments and comment votes in Postgres.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool *pgxpool.Pool) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

func (s *PostgresCommentStore) Reply(ctx context.Context, parentCommentID int64, author Author, content string) (Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var parentPostID int64
	var parentDepth int
	err = tx.QueryRow(ctx,
		`SELECT post_id, depth FROM comment WHERE id = $1`,
		parentCommentID).Scan(&parentPostID, &parentDepth)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrCommentNotFound
	}
	if err != nil {
		return Comment{}, err
	}

	// Counter side-effects: the immediate parent and the owning post, never
	// intermediate ancestors. Zero rows affected here means the target row
	// vanished between the lookup and the update.
	ct, err := tx.Exec(ctx,
		`UPDATE comment SET comments_count = comments_count + 1 WHERE id = $1`,
		parentCommentID)
	if err != nil {
		return Comment{}, err
	}
	if ct.RowsAffected() == 0 {
		return Comment{}, ErrConcurrentModification
	}
	ct, err = tx.Exec(ctx,
		`UPDATE post SET comments_count = comments_count + 1 WHERE id = $1`,
		parentPostID)
	if err != nil {
		return Comment{}, err
	}
	if ct.RowsAffected() == 0 {
		return Comment{}, ErrConcurrentModification
	}

	const ins = `INSERT INTO comment (user_id, post_id, parent_comment_id, content, depth)
	             VALUES ($1, $2, $3, $4, $5)
	             RETURNING id, user_id, post_id, parent_comment_id, content,
	                       depth, comments_count, points, created_at`
	var out Comment
	err = tx.QueryRow(ctx, ins, author.ID, parentPostID, parentCommentID, content, parentDepth+1).
		Scan(&out.ID, &out.AuthorID, &out.PostID, &out.ParentCommentID,
			&out.Content, &out.Depth, &out.CommentsCount, &out.Points, &out.CreatedAt)
	if err != nil {
		return Comment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Comment{}, err
	}
	out.Author = author
	out.Children = []Comment{}
	return out, nil
}

func (s *PostgresCommentStore) ToggleUpvote(ctx context.Context, commentID int64, userID string) (int, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var voteID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM comment_upvote WHERE comment_id = $1 AND user_id = $2 LIMIT 1`,
		commentID, userID).Scan(&voteID)

	delta := 1
	hasVote := false
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return 0, false, err
	default:
		hasVote = true
		delta = -1
	}

	var points int
	err = tx.QueryRow(ctx,
		`UPDATE comment SET points = points + $1 WHERE id = $2 RETURNING points`,
		delta, commentID).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrCommentNotFound
	}
	if err != nil {
		return 0, false, err
	}

	if hasVote {
		if _, err := tx.Exec(ctx, `DELETE FROM comment_upvote WHERE id = $1`, voteID); err != nil {
			return 0, false, err
		}
	} else {
		if _, err := tx.Exec(ctx,
			`INSERT INTO comment_upvote (comment_id, user_id) VALUES ($1, $2)`,
			commentID, userID); err != nil {
			return 0, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return points, delta > 0, nil
}

func (s *PostgresCommentStore) ListReplies(ctx context.Context, parentCommentID int64, p PageParams, viewerID string) ([]Comment, int, error) {
	p = p.Normalize()

	const countQ = `SELECT COUNT(DISTINCT id) FROM comment WHERE parent_comment_id = $1`
	var total int
	if err := s.pool.QueryRow(ctx, countQ, parentCommentID).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, ErrNoComments
	}

	replies, err := queryComments(ctx, s.pool, p, viewerID,
		"c.parent_comment_id = $1", parentCommentID)
	if err != nil {
		return nil, 0, err
	}
	return replies, p.TotalPages(total), nil
}

// commentOrderBy mirrors postOrderBy for comment queries.
func commentOrderBy(p PageParams) string {
	col := "c.points"
	if p.SortBy == SortRecent {
		col = "c.created_at"
	}
	dir := "DESC"
	if p.Order == OrderAsc {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, c.id %s", col, dir, dir)
}

// queryComments fetches one page of comments matching where (which may only
// reference $1), annotated with the viewer's upvote state.
func queryComments(ctx context.Context, pool *pgxpool.Pool, p PageParams, viewerID, where string, arg any) ([]Comment, error) {
	q := `SELECT c.id, c.user_id, c.post_id, c.parent_comment_id, c.content,
	             c.depth, c.comments_count, c.points, c.created_at,
	             COALESCE(u.name, ''), (cu.user_id IS NOT NULL)
	      FROM comment c
	      LEFT JOIN "user" u ON u.id = c.user_id
	      LEFT JOIN comment_upvote cu ON cu.comment_id = c.id AND cu.user_id = $2
	      WHERE ` + where + `
	      ORDER BY ` + commentOrderBy(p) + `
	      LIMIT $3 OFFSET $4`

	rows, err := pool.Query(ctx, q, arg, viewerID, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

// attachChildren loads a bounded preview of at most 2 direct children per
// parent in one round trip, using a window function to cap the per-parent
// rows. Children never carry their own children.
func attachChildren(ctx context.Context, pool *pgxpool.Pool, parents []Comment, p PageParams, viewerID string) error {
	parentIDs := make([]int64, len(parents))
	for i, c := range parents {
		parentIDs[i] = c.ID
	}

	q := fmt.Sprintf(`SELECT id, user_id, post_id, parent_comment_id, content,
	             depth, comments_count, points, created_at, author_name, is_upvoted
	      FROM (
	          SELECT c.id, c.user_id, c.post_id, c.parent_comment_id, c.content,
	                 c.depth, c.comments_count, c.points, c.created_at,
	                 COALESCE(u.name, '') AS author_name,
	                 (cu.user_id IS NOT NULL) AS is_upvoted,
	                 ROW_NUMBER() OVER (PARTITION BY c.parent_comment_id ORDER BY %s) AS rn
	          FROM comment c
	          LEFT JOIN "user" u ON u.id = c.user_id
	          LEFT JOIN comment_upvote cu ON cu.comment_id = c.id AND cu.user_id = $2
	          WHERE c.parent_comment_id = ANY($1)
	      ) ranked
	      WHERE rn <= 2
	      ORDER BY parent_comment_id, rn`, commentOrderBy(p))

	rows, err := pool.Query(ctx, q, parentIDs, viewerID)
	if err != nil {
		return err
	}
	defer rows.Close()

	children, err := scanComments(rows)
	if err != nil {
		return err
	}

	byParent := make(map[int64][]Comment)
	for _, c := range children {
		if c.ParentCommentID != nil {
			byParent[*c.ParentCommentID] = append(byParent[*c.ParentCommentID], c)
		}
	}
	for i := range parents {
		if kids := byParent[parents[i].ID]; kids != nil {
			parents[i].Children = kids
		}
	}
	return nil
}

func scanComments(rows pgx.Rows) ([]Comment, error) {
	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.PostID, &c.ParentCommentID,
			&c.Content, &c.Depth, &c.CommentsCount, &c.Points, &c.CreatedAt,
			&c.Author.Name, &c.IsUpvoted); err != nil {
			return nil, err
		}
		c.Author.ID = c.AuthorID
		c.Children = []Comment{}
		out = append(out, c)
	}
	return out, rows.Err()
}
