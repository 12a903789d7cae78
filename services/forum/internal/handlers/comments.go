package handlers

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/example/forum-platform/internal/platform/api"
	"github.com/example/forum-platform/internal/platform/auth"
	"github.com/example/forum-platform/internal/platform/events"
	"github.com/example/forum-platform/services/forum/internal/store"
)

// ReplyToComment handles POST /v1/comments/{id}
func ReplyToComment(cs store.CommentStore, ev *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			api.Unauthorized(w)
			return
		}
		id, ok := idParam(r)
		if !ok {
			api.BadRequest(w, "invalid comment id")
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

		reply, err := cs.Reply(r.Context(), id, store.Author{ID: user.ID, Name: user.Name}, content)
		if err != nil {
			if errors.Is(err, store.ErrCommentNotFound) {
				api.NotFound(w, "Parent comment not found")
				return
			}
			api.Internal(w)
			return
		}

		ev.Publish(events.SubjectCommentCreated, "comment_created", user.ID, map[string]any{
			"comment_id":        reply.ID,
			"post_id":           reply.PostID,
			"parent_comment_id": id,
		})
		api.Success(w, http.StatusOK, "Comment added successfully", reply)
	}
}

// UpvoteComment handles POST /v1/comments/{id}/upvote
func UpvoteComment(cs store.CommentStore, ev *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			api.Unauthorized(w)
			return
		}
		id, ok := idParam(r)
		if !ok {
			api.BadRequest(w, "invalid comment id")
			return
		}

		points, upvoted, err := cs.ToggleUpvote(r.Context(), id, user.ID)
		if err != nil {
			if errors.Is(err, store.ErrCommentNotFound) {
				api.NotFound(w, "Comment not found")
				return
			}
			api.Internal(w)
			return
		}

		ev.Publish(events.SubjectCommentUpvoted, "comment_upvote_toggled", user.ID, map[string]any{
			"comment_id": id,
			"points":     points,
			"upvoted":    upvoted,
		})
		message := "Comment upvoted successfully"
		if !upvoted {
			message = "Comment downvoted successfully"
		}
		api.Success(w, http.StatusOK, message, map[string]any{
			"count":     points,
			"isUpvoted": upvoted,
		})
	}
}

// GetCommentReplies handles GET /v1/comments/{id}/comments
func GetCommentReplies(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			api.BadRequest(w, "invalid comment id")
			return
		}

		p := pageParams(r)
		replies, totalPages, err := cs.ListReplies(r.Context(), id, p, viewerID(r))
		if err != nil {
			if errors.Is(err, store.ErrNoComments) {
				api.NotFound(w, "No comments found")
				return
			}
			api.Internal(w)
			return
		}
		api.Paginated(w, http.StatusOK, "Comments fetched successfully", replies, p.Page, totalPages)
	}
}
