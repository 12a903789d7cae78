package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a development-only backing store. Posts and comments share
// one store because counter maintenance spans both: a reply touches its parent
// comment and the owning post inside the same critical section. The PostStore
// and CommentStore interfaces are served by the Posts and Comments views.
type InMemoryStore struct {
	mu           sync.Mutex
	nextID       int64
	users        map[string]string // user id -> display name
	posts        map[int64]*Post
	comments     map[int64]*Comment
	postVotes    map[int64]map[string]bool // post id -> voter set
	commentVotes map[int64]map[string]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:        make(map[string]string),
		posts:        make(map[int64]*Post),
		comments:     make(map[int64]*Comment),
		postVotes:    make(map[int64]map[string]bool),
		commentVotes: make(map[int64]map[string]bool),
	}
}

// Posts returns the PostStore view of the shared store.
func (s *InMemoryStore) Posts() PostStore { return memoryPosts{s} }

// Comments returns the CommentStore view of the shared store.
func (s *InMemoryStore) Comments() CommentStore { return memoryComments{s} }

// PutUser registers a display name for author joins. Production reads names
// from the auth provider's user table; fixtures register them here.
func (s *InMemoryStore) PutUser(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = name
}

type memoryPosts struct{ s *InMemoryStore }

func (m memoryPosts) Create(ctx context.Context, authorID, title, url, content string) (int64, error) {
	return m.s.createPost(ctx, authorID, title, url, content)
}

func (m memoryPosts) List(ctx context.Context, params ListPostsParams) ([]Post, int, error) {
	return m.s.listPosts(ctx, params)
}

func (m memoryPosts) Get(ctx context.Context, postID int64, viewerID string) (Post, error) {
	return m.s.getPost(ctx, postID, viewerID)
}

func (m memoryPosts) ToggleUpvote(ctx context.Context, postID int64, userID string) (int, bool, error) {
	return m.s.togglePostUpvote(ctx, postID, userID)
}

func (m memoryPosts) AddComment(ctx context.Context, postID int64, author Author, content string) (Comment, error) {
	return m.s.addComment(ctx, postID, author, content)
}

func (m memoryPosts) ListComments(ctx context.Context, postID int64, p PageParams, includeChildren bool, viewerID string) ([]Comment, int, error) {
	return m.s.listComments(ctx, postID, p, includeChildren, viewerID)
}

type memoryComments struct{ s *InMemoryStore }

func (m memoryComments) Reply(ctx context.Context, parentCommentID int64, author Author, content string) (Comment, error) {
	return m.s.reply(ctx, parentCommentID, author, content)
}

func (m memoryComments) ToggleUpvote(ctx context.Context, commentID int64, userID string) (int, bool, error) {
	return m.s.toggleCommentUpvote(ctx, commentID, userID)
}

func (m memoryComments) ListReplies(ctx context.Context, parentCommentID int64, p PageParams, viewerID string) ([]Comment, int, error) {
	return m.s.listReplies(ctx, parentCommentID, p, viewerID)
}

func (s *InMemoryStore) createPost(_ context.Context, authorID, title, url, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p := &Post{
		ID:        s.nextID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
		Author:    Author{ID: authorID},
	}
	if url != "" {
		u := url
		p.URL = &u
	}
	if content != "" {
		c := content
		p.Content = &c
	}
	s.posts[p.ID] = p
	return p.ID, nil
}

func (s *InMemoryStore) listPosts(_ context.Context, params ListPostsParams) ([]Post, int, error) {
	params.PageParams = params.PageParams.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []Post
	for _, p := range s.posts {
		if params.Author != "" && p.Author.ID != params.Author {
			continue
		}
		if params.Site != "" && (p.URL == nil || *p.URL != params.Site) {
			continue
		}
		matching = append(matching, s.annotatePost(*p, params.ViewerID))
	}

	sortPosts(matching, params.PageParams)
	page := pageSlice(matching, params.PageParams)
	if len(page) == 0 {
		return nil, 0, ErrNoPosts
	}
	return page, params.TotalPages(len(matching)), nil
}

func (s *InMemoryStore) getPost(_ context.Context, postID int64, viewerID string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return Post{}, ErrPostNotFound
	}
	return s.annotatePost(*p, viewerID), nil
}

func (s *InMemoryStore) togglePostUpvote(_ context.Context, postID int64, userID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return 0, false, ErrPostNotFound
	}
	if s.postVotes[postID] == nil {
		s.postVotes[postID] = make(map[string]bool)
	}
	if s.postVotes[postID][userID] {
		delete(s.postVotes[postID], userID)
		p.Points--
		return p.Points, false, nil
	}
	s.postVotes[postID][userID] = true
	p.Points++
	return p.Points, true, nil
}

func (s *InMemoryStore) addComment(_ context.Context, postID int64, author Author, content string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return Comment{}, ErrPostNotFound
	}
	p.CommentsCount++
	s.users[author.ID] = author.Name

	s.nextID++
	c := &Comment{
		ID:        s.nextID,
		AuthorID:  author.ID,
		PostID:    postID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Author:    author,
	}
	s.comments[c.ID] = c

	out := *c
	out.Children = []Comment{}
	return out, nil
}

func (s *InMemoryStore) listComments(_ context.Context, postID int64, p PageParams, includeChildren bool, viewerID string) ([]Comment, int, error) {
	p = p.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return nil, 0, ErrPostNotFound
	}

	var roots []Comment
	for _, c := range s.comments {
		if c.PostID == postID && c.ParentCommentID == nil {
			roots = append(roots, s.annotateComment(*c, viewerID))
		}
	}
	if len(roots) == 0 {
		return nil, 0, ErrNoComments
	}

	sortComments(roots, p)
	total := len(roots)
	page := pageSlice(roots, p)

	if includeChildren {
		for i := range page {
			page[i].Children = s.childPreview(page[i].ID, p, viewerID)
		}
	}
	return page, p.TotalPages(total), nil
}

func (s *InMemoryStore) reply(_ context.Context, parentCommentID int64, author Author, content string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.comments[parentCommentID]
	if !ok {
		return Comment{}, ErrCommentNotFound
	}
	post, ok := s.posts[parent.PostID]
	if !ok {
		return Comment{}, ErrConcurrentModification
	}

	// Only the immediate parent and the owning post are counted; grandparents
	// keep their counts.
	parent.CommentsCount++
	post.CommentsCount++
	s.users[author.ID] = author.Name

	s.nextID++
	parentID := parentCommentID
	c := &Comment{
		ID:              s.nextID,
		AuthorID:        author.ID,
		PostID:          parent.PostID,
		ParentCommentID: &parentID,
		Content:         content,
		Depth:           parent.Depth + 1,
		CreatedAt:       time.Now().UTC(),
		Author:          author,
	}
	s.comments[c.ID] = c

	out := *c
	out.Children = []Comment{}
	return out, nil
}

func (s *InMemoryStore) toggleCommentUpvote(_ context.Context, commentID int64, userID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok {
		return 0, false, ErrCommentNotFound
	}
	if s.commentVotes[commentID] == nil {
		s.commentVotes[commentID] = make(map[string]bool)
	}
	if s.commentVotes[commentID][userID] {
		delete(s.commentVotes[commentID], userID)
		c.Points--
		return c.Points, false, nil
	}
	s.commentVotes[commentID][userID] = true
	c.Points++
	return c.Points, true, nil
}

func (s *InMemoryStore) listReplies(_ context.Context, parentCommentID int64, p PageParams, viewerID string) ([]Comment, int, error) {
	p = p.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	var replies []Comment
	for _, c := range s.comments {
		if c.ParentCommentID != nil && *c.ParentCommentID == parentCommentID {
			replies = append(replies, s.annotateComment(*c, viewerID))
		}
	}
	if len(replies) == 0 {
		return nil, 0, ErrNoComments
	}

	sortComments(replies, p)
	total := len(replies)
	return pageSlice(replies, p), p.TotalPages(total), nil
}

func (s *InMemoryStore) annotatePost(p Post, viewerID string) Post {
	p.Author.Name = s.users[p.Author.ID]
	p.IsUpvoted = viewerID != "" && s.postVotes[p.ID][viewerID]
	return p
}

func (s *InMemoryStore) annotateComment(c Comment, viewerID string) Comment {
	c.Author = Author{ID: c.AuthorID, Name: s.users[c.AuthorID]}
	c.IsUpvoted = viewerID != "" && s.commentVotes[c.ID][viewerID]
	c.Children = []Comment{}
	return c
}

// childPreview returns at most 2 direct children in the page ordering,
// without their own children.
func (s *InMemoryStore) childPreview(parentID int64, p PageParams, viewerID string) []Comment {
	var kids []Comment
	for _, c := range s.comments {
		if c.ParentCommentID != nil && *c.ParentCommentID == parentID {
			kids = append(kids, s.annotateComment(*c, viewerID))
		}
	}
	sortComments(kids, p)
	if len(kids) > 2 {
		kids = kids[:2]
	}
	if kids == nil {
		kids = []Comment{}
	}
	return kids
}

func sortPosts(posts []Post, p PageParams) {
	asc := p.Order == OrderAsc
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !asc {
			a, b = b, a
		}
		if p.SortBy == SortPoints {
			if a.Points != b.Points {
				return a.Points < b.Points
			}
		} else if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func sortComments(comments []Comment, p PageParams) {
	asc := p.Order == OrderAsc
	sort.Slice(comments, func(i, j int) bool {
		a, b := comments[i], comments[j]
		if !asc {
			a, b = b, a
		}
		if p.SortBy == SortPoints {
			if a.Points != b.Points {
				return a.Points < b.Points
			}
		} else if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func pageSlice[T any](items []T, p PageParams) []T {
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
