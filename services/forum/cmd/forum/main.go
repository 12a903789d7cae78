package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/forum-platform/internal/platform/auth"
	"github.com/example/forum-platform/internal/platform/config"
	"github.com/example/forum-platform/internal/platform/db"
	"github.com/example/forum-platform/internal/platform/events"
	"github.com/example/forum-platform/internal/platform/httpserver"
	"github.com/example/forum-platform/internal/platform/logging"
	"github.com/example/forum-platform/internal/platform/natsconn"
	"github.com/example/forum-platform/internal/platform/run"
	"github.com/example/forum-platform/services/forum/internal/handlers"
	"github.com/example/forum-platform/services/forum/internal/store"
	"github.com/example/forum-platform/services/forum/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	posts, comments, pool, closePool := initStores(log, cfg.IsProduction())
	if closePool != nil {
		defer closePool()
	}

	resolver := auth.JWTResolver{Secret: []byte(cfg.SessionSecret)}

	// Events are best-effort: without NATS the publisher degrades to a no-op
	// and the notifications worker stays off.
	var js nats.JetStreamContext
	nc, err := natsconn.Connect(natsconn.Options{})
	if err != nil {
		log.Warn("nats unavailable, events disabled", zap.Error(err))
	} else {
		defer nc.Close()
		if js, err = nc.JetStream(); err != nil {
			log.Warn("jetstream unavailable, events disabled", zap.Error(err))
			js = nil
		}
	}
	ev := events.New(js, log)

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Use(auth.SetSession(resolver))

	// Post routes (public read, auth required for write)
	r.Route("/v1/posts", func(r chi.Router) {
		r.Get("/", handlers.GetPosts(posts))
		r.Get("/{id}", handlers.GetPost(posts))
		r.Get("/{id}/comments", handlers.GetPostComments(posts))
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Post("/", handlers.CreatePost(posts, ev))
			r.Post("/{id}/upvote", handlers.UpvotePost(posts, ev))
			r.Post("/{id}/comment", handlers.CommentOnPost(posts, ev))
		})
	})

	// Comment routes
	r.Route("/v1/comments", func(r chi.Router) {
		r.Get("/{id}/comments", handlers.GetCommentReplies(comments))
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Post("/{id}", handlers.ReplyToComment(comments, ev))
			r.Post("/{id}/upvote", handlers.UpvoteComment(comments, ev))
		})
	})

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTP.Addr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Router:      r,
	})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if js != nil && pool != nil {
			if err := worker.StartNotificationsConsumer(ctx, js, pool, log); err != nil {
				log.Warn("notifications worker not started", zap.Error(err))
			}
		}

		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStores selects the store backend. In production (APP_ENV=production) a
// working Postgres connection is required and the process terminates without
// one. The returned pool is nil for the in-memory backend.
func initStores(log *zap.Logger, isProd bool) (store.PostStore, store.CommentStore, *pgxpool.Pool, func()) {
	pool, err := db.Open(context.Background())
	if err != nil {
		if isProd {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, using in-memory store (development only)", zap.Error(err))
		mem := store.NewInMemoryStore()
		return mem.Posts(), mem.Comments(), nil, nil
	}

	log.Info("store: postgres")
	return store.NewPostgresPostStore(pool), store.NewPostgresCommentStore(pool), pool, pool.Close
}
