package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/example/forum-platform/internal/platform/api"
	"github.com/example/forum-platform/internal/platform/auth"
	"github.com/example/forum-platform/internal/platform/events"
	"github.com/example/forum-platform/services/forum/internal/store"
)

// CreatePost handles POST /v1/posts
func CreatePost(ps store.PostStore, ev *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			api.Unauthorized(w)
			return
		}

		var title, postURL, content string
		if err := decodeBody(w, r, map[string]*string{
			"title":   &title,
			"url":     &postURL,
			"content": &content,
		}); err != nil {
			api.BadRequest(w, "invalid request body")
			return
		}

		postURL = strings.TrimSpace(postURL)
		if utf8.RuneCountInString(title) < 3 {
			api.FormError(w, "Title must be atleast 3 chars")
			return
		}
		if postURL == "" && content == "" {
			api.FormError(w, "Either URL or Content must be provided")
			return
		}
		if postURL != "" {
			u, err := url.ParseRequestURI(postURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				api.FormError(w, "Must be a valid URL")
				return
			}
		}

		postID, err := ps.Create(r.Context(), user.ID, title, postURL, content)
		if err != nil {
			api.Internal(w)
			return
		}

		ev.Publish(events.SubjectPostCreated, "post_created", user.ID, map[string]any{
			"post_id": postID,
			"title":   title,
		})
		api.Success(w, http.StatusCreated, "Post created successfully", map[string]any{"postId": postID})
	}
}

// GetPosts handles GET /v1/posts
func GetPosts(ps store.PostStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		params := store.ListPostsParams{
			PageParams: pageParams(r),
			Author:     q.Get("author"),
			Site:       q.Get("site"),
			ViewerID:   viewerID(r),
		}

		posts, totalPages, err := ps.List(r.Context(), params)
		if err != nil {
			if errors.Is(err, store.ErrNoPosts) {
				api.NotFound(w, "No posts found")
				return
			}
			api.Internal(w)
			return
		}
		api.Paginated(w, http.StatusOK, "Posts fetched successfully", posts, params.Page, totalPages)
	}
}

// GetPost handles GET /v1/posts/{id}
func GetPost(ps store.PostStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			api.BadRequest(w, "invalid post id")
			return
		}

		post, err := ps.Get(r.Context(), id, viewerID(r))
		if err != nil {
			if errors.Is(err, store.ErrPostNotFound) {
				api.NotFound(w, "Post not found")
				return
			}
			api.Internal(w)
			return
		}
		api.Success(w, http.StatusOK, "Post fetched successfully", post)
	}
}

// UpvotePost handles POST /v1/posts/{id}/upvote
func UpvotePost(ps store.PostStore, ev *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			api.Unauthorized(w)
			return
		}
		id, ok := idParam(r)
		if !ok {
			api.BadRequest(w, "invalid post id")
			return
		}

		points, upvoted, err := ps.ToggleUpvote(r.Context(), id, user.ID)
		if err != nil {
			if errors.Is(err, store.ErrPostNotFound) {
				api.NotFound(w, "Post not found")
				return
			}
			api.Internal(w)
			return
		}

		ev.Publish(events.SubjectPostUpvoted, "post_upvote_toggled", user.ID, map[string]any{
			"post_id": id,
			"points":  points,
			"upvoted": upvoted,
		})
		message := "Post upvoted successfully"
		if !upvoted {
			message = "Post downvoted successfully"
		}
		api.Success(w, http.StatusOK, message, map[string]any{
			"count":     points,
			"isUpvoted": upvoted,
		})
	}
}

// CommentOnPost handles POST /v1/posts/{id}/comment
func CommentOnPost(ps store.PostStore, ev *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			api.Unauthorized(w)
			return
		}
		id, ok := idParam(r)
		if !ok {
			api.BadRequest(w, "invalid post id")
			return
		}

		var content string
		if err := decodeBody(w, r, map[string]*string{"content": &content}); err != nil {
			api.BadRequest(w, "invalid request body")
			return
		}
		if utf8.RuneCountInString(content) < 3 {
			api.FormError(w, "Comment must be at least 3 chars")
			return
		}

		comment, err := ps.AddComment(r.Context(), id, store.Author{ID: user.ID, Name: user.Name}, content)
		if err != nil {
			if errors.Is(err, store.ErrPostNotFound) {
				api.NotFound(w, "Post not found")
				return
			}
			api.Internal(w)
			return
		}

		ev.Publish(events.SubjectCommentCreated, "comment_created", user.ID, map[string]any{
			"comment_id": comment.ID,
			"post_id":    comment.PostID,
		})
		api.Success(w, http.StatusOK, "Comment added successfully", comment)
	}
}

// GetPostComments handles GET /v1/posts/{id}/comments
func GetPostComments(ps store.PostStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			api.BadRequest(w, "invalid post id")
			return
		}

		p := pageParams(r)
		includeChildren, _ := strconv.ParseBool(r.URL.Query().Get("includeChildren"))

		comments, totalPages, err := ps.ListComments(r.Context(), id, p, includeChildren, viewerID(r))
		if err != nil {
			switch {
			case errors.Is(err, store.ErrPostNotFound):
				api.NotFound(w, "Post not found")
			case errors.Is(err, store.ErrNoComments):
				api.NotFound(w, "No comments found")
			default:
				api.Internal(w)
			}
			return
		}
		api.Paginated(w, http.StatusOK, "Comments fetched successfully", comments, p.Page, totalPages)
	}
}
