// Package worker consumes forum events off JetStream and materializes
// reply notifications.
//
// Notifications live in their own table, written only by this consumer:
//
//	CREATE TABLE notification (
//	    id           BIGSERIAL PRIMARY KEY,
//	    event_id     TEXT NOT NULL UNIQUE,
//	    user_id      TEXT NOT NULL,
//	    actor_id     TEXT NOT NULL,
//	    post_id      BIGINT NOT NULL,
//	    comment_id   BIGINT NOT NULL,
//	    read         BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/forum-platform/internal/platform/events"
)

const (
	durableName   = "forum_notifications"
	fetchBatch    = 100
	fetchMaxWait  = 2 * time.Second
	fetchRetryGap = time.Second
)

type commentCreatedEvent struct {
	EventID    string `json:"event_id"`
	UserID     string `json:"user_id"`
	Properties struct {
		CommentID       int64 `json:"comment_id"`
		PostID          int64 `json:"post_id"`
		ParentCommentID int64 `json:"parent_comment_id"`
	} `json:"properties"`
}

// StartNotificationsConsumer subscribes to comment-created events and writes
// one notification per event to the author being replied to. Runs until ctx
// is cancelled.
func StartNotificationsConsumer(ctx context.Context, js nats.JetStreamContext, pool *pgxpool.Pool, log *zap.Logger) error {
	sub, err := js.PullSubscribe(events.SubjectCommentCreated, durableName)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(fetchMaxWait))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				log.Warn("notifications: fetch failed", zap.Error(err))
				time.Sleep(fetchRetryGap)
				continue
			}

			for _, m := range msgs {
				if err := handleCommentCreated(ctx, pool, m.Data); err != nil {
					log.Warn("notifications: handle failed", zap.Error(err))
					if err := m.Nak(); err != nil {
						log.Warn("notifications: nak failed", zap.Error(err))
					}
					continue
				}
				if err := m.Ack(); err != nil {
					log.Warn("notifications: ack failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

func handleCommentCreated(ctx context.Context, pool *pgxpool.Pool, data []byte) error {
	var ev commentCreatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		// malformed payloads never become deliverable; drop them
		return nil
	}

	recipient, err := resolveRecipient(ctx, pool, ev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// the thread got deleted between publish and consume
			return nil
		}
		return err
	}
	// no self-notifications
	if recipient == "" || recipient == ev.UserID {
		return nil
	}

	// event_id uniqueness makes redelivery idempotent
	_, err = pool.Exec(ctx, `
		INSERT INTO notification (event_id, user_id, actor_id, post_id, comment_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, recipient, ev.UserID, ev.Properties.PostID, ev.Properties.CommentID)
	return err
}

// resolveRecipient picks who gets notified: the parent comment's author for a
// reply, otherwise the post's author.
func resolveRecipient(ctx context.Context, pool *pgxpool.Pool, ev commentCreatedEvent) (string, error) {
	var recipient string
	if ev.Properties.ParentCommentID != 0 {
		err := pool.QueryRow(ctx,
			`SELECT user_id FROM comment WHERE id = $1`,
			ev.Properties.ParentCommentID).Scan(&recipient)
		return recipient, err
	}
	err := pool.QueryRow(ctx,
		`SELECT user_id FROM post WHERE id = $1`,
		ev.Properties.PostID).Scan(&recipient)
	return recipient, err
}
