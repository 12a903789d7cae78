package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Expected schema (the external "user" table is owned by the auth provider):
//
//	CREATE TABLE post (
//	    id             serial PRIMARY KEY,
//	    user_id        text NOT NULL REFERENCES "user"(id),
//	    title          text NOT NULL,
//	    url            text,
//	    content        text,
//	    points         integer NOT NULL DEFAULT 0,
//	    comments_count integer NOT NULL DEFAULT 0,
//	    created_at     timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE TABLE comment (
//	    id                serial PRIMARY KEY,
//	    user_id           text NOT NULL REFERENCES "user"(id),
//	    post_id           integer NOT NULL REFERENCES post(id),
//	    parent_comment_id integer REFERENCES comment(id),
//	    content           text NOT NULL,
//	    depth             integer NOT NULL DEFAULT 0,
//	    comments_count    integer NOT NULL DEFAULT 0,
//	    points            integer NOT NULL DEFAULT 0,
//	    created_at        timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE TABLE post_upvote (
//	    id         serial PRIMARY KEY,
//	    post_id    integer NOT NULL REFERENCES post(id),
//	    user_id    text NOT NULL REFERENCES "user"(id),
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE TABLE comment_upvote (
//	    id         serial PRIMARY KEY,
//	    comment_id integer NOT NULL REFERENCES comment(id),
//	    user_id    text NOT NULL REFERENCES "user"(id),
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);

// PostgresPostStore persists posts in Postgres.
type PostgresPostStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPostStore creates a store backed by Postgres.
func NewPostgresPostStore(pool *pgxpool.Pool) *PostgresPostStore {
	return &PostgresPostStore{pool: pool}
}

func (s *PostgresPostStore) Create(ctx context.Context, authorID, title, url, content string) (int64, error) {
	const q = `INSERT INTO post (user_id, title, url, content)
	           VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
	           RETURNING id`
	var id int64
	if err := s.pool.QueryRow(ctx, q, authorID, title, url, content).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// postOrderBy maps validated sort params onto an ORDER BY clause. The id
// tie-break keeps pagination stable when sort keys collide.
func postOrderBy(p PageParams) string {
	col := "p.points"
	if p.SortBy == SortRecent {
		col = "p.created_at"
	}
	dir := "DESC"
	if p.Order == OrderAsc {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, p.id %s", col, dir, dir)
}

func (s *PostgresPostStore) List(ctx context.Context, p ListPostsParams) ([]Post, int, error) {
	p.PageParams = p.PageParams.Normalize()

	const countQ = `SELECT COUNT(DISTINCT p.id) FROM post p
	                WHERE ($1 = '' OR p.user_id = $1)
	                  AND ($2 = '' OR p.url = $2)`
	var total int
	if err := s.pool.QueryRow(ctx, countQ, p.Author, p.Site).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT p.id, p.title, p.url, p.content, p.points, p.comments_count,
	             p.created_at, p.user_id, COALESCE(u.name, ''),
	             (pu.user_id IS NOT NULL)
	      FROM post p
	      LEFT JOIN "user" u ON u.id = p.user_id
	      LEFT JOIN post_upvote pu ON pu.post_id = p.id AND pu.user_id = $3
	      WHERE ($1 = '' OR p.user_id = $1)
	        AND ($2 = '' OR p.url = $2)
	      ` + postOrderBy(p.PageParams) + `
	      LIMIT $4 OFFSET $5`

	rows, err := s.pool.Query(ctx, q, p.Author, p.Site, p.ViewerID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var out Post
		if err := rows.Scan(&out.ID, &out.Title, &out.URL, &out.Content,
			&out.Points, &out.CommentsCount, &out.CreatedAt,
			&out.Author.ID, &out.Author.Name, &out.IsUpvoted); err != nil {
			return nil, 0, err
		}
		posts = append(posts, out)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(posts) == 0 {
		return nil, 0, ErrNoPosts
	}
	return posts, p.TotalPages(total), nil
}

func (s *PostgresPostStore) Get(ctx context.Context, postID int64, viewerID string) (Post, error) {
	const q = `SELECT p.id, p.title, p.url, p.content, p.points, p.comments_count,
	                  p.created_at, p.user_id, COALESCE(u.name, ''),
	                  (pu.user_id IS NOT NULL)
	           FROM post p
	           LEFT JOIN "user" u ON u.id = p.user_id
	           LEFT JOIN post_upvote pu ON pu.post_id = p.id AND pu.user_id = $2
	           WHERE p.id = $1`
	var out Post
	err := s.pool.QueryRow(ctx, q, postID, viewerID).Scan(&out.ID, &out.Title,
		&out.URL, &out.Content, &out.Points, &out.CommentsCount, &out.CreatedAt,
		&out.Author.ID, &out.Author.Name, &out.IsUpvoted)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, err
	}
	return out, nil
}

func (s *PostgresPostStore) ToggleUpvote(ctx context.Context, postID int64, userID string) (int, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var voteID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM post_upvote WHERE post_id = $1 AND user_id = $2 LIMIT 1`,
		postID, userID).Scan(&voteID)

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

	// Atomic increment; the RETURNING read keeps check and effect in one
	// statement so concurrent voters cannot lose updates.
	var points int
	err = tx.QueryRow(ctx,
		`UPDATE post SET points = points + $1 WHERE id = $2 RETURNING points`,
		delta, postID).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrPostNotFound
	}
	if err != nil {
		return 0, false, err
	}

	if hasVote {
		if _, err := tx.Exec(ctx, `DELETE FROM post_upvote WHERE id = $1`, voteID); err != nil {
			return 0, false, err
		}
	} else {
		if _, err := tx.Exec(ctx,
			`INSERT INTO post_upvote (post_id, user_id) VALUES ($1, $2)`,
			postID, userID); err != nil {
			return 0, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return points, delta > 0, nil
}

func (s *PostgresPostStore) AddComment(ctx context.Context, postID int64, author Author, content string) (Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var commentsCount int
	err = tx.QueryRow(ctx,
		`UPDATE post SET comments_count = comments_count + 1 WHERE id = $1 RETURNING comments_count`,
		postID).Scan(&commentsCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrPostNotFound
	}
	if err != nil {
		return Comment{}, err
	}

	const ins = `INSERT INTO comment (user_id, post_id, content)
	             VALUES ($1, $2, $3)
	             RETURNING id, user_id, post_id, parent_comment_id, content,
	                       depth, comments_count, points, created_at`
	var out Comment
	err = tx.QueryRow(ctx, ins, author.ID, postID, content).Scan(&out.ID,
		&out.AuthorID, &out.PostID, &out.ParentCommentID, &out.Content,
		&out.Depth, &out.CommentsCount, &out.Points, &out.CreatedAt)
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

func (s *PostgresPostStore) ListComments(ctx context.Context, postID int64, p PageParams, includeChildren bool, viewerID string) ([]Comment, int, error) {
	p = p.Normalize()

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM post WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, ErrPostNotFound
	}

	const countQ = `SELECT COUNT(DISTINCT id) FROM comment
	                WHERE post_id = $1 AND parent_comment_id IS NULL`
	var total int
	if err := s.pool.QueryRow(ctx, countQ, postID).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, ErrNoComments
	}

	roots, err := queryComments(ctx, s.pool, p, viewerID,
		"c.post_id = $1 AND c.parent_comment_id IS NULL", postID)
	if err != nil {
		return nil, 0, err
	}

	if includeChildren && len(roots) > 0 {
		if err := attachChildren(ctx, s.pool, roots, p, viewerID); err != nil {
			return nil, 0, err
		}
	}
	return roots, p.TotalPages(total), nil
}
