package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yourorg/rulesweep/internal/gmail"
	"github.com/yourorg/rulesweep/internal/rate"
	"github.com/yourorg/rulesweep/internal/store"
)

const maxPageSize = 500

// Options controls a snapshot sync.
type Options struct {
	Query    string // Gmail search restricting which messages sync
	Max      int    // stop after this many messages; <= 0 means no cap
	PageSize int
}

// Store persists fetched messages.
type Store interface {
	Upsert(ctx context.Context, e store.Email) error
	Count(ctx context.Context) (int, error)
}

// Service copies Gmail messages into the local snapshot database.
type Service struct {
	Client  gmail.Client
	Store   Store
	Limiter rate.Limiter
	Logger  *slog.Logger
	Clock   func() time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(client gmail.Client, st Store, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:  client,
		Store:   st,
		Limiter: limiter,
		Logger:  logger,
		Clock:   time.Now,
	}
}

// Run fetches messages page by page and upserts each into the store.
// It returns the number of messages written.
func (s *Service) Run(ctx context.Context, opts Options) (int, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	query := gmail.Query{Raw: opts.Query}

	s.Logger.Info("syncing snapshot", "query", opts.Query, "max", opts.Max)

	var (
		stored int
		token  string
	)
	for {
		size := pageSize
		if opts.Max > 0 {
			if remaining := opts.Max - stored; remaining < size {
				size = remaining
			}
		}
		if size <= 0 {
			break
		}

		page, err := s.listMessages(ctx, query, token, size)
		if err != nil {
			return stored, err
		}

		for _, id := range page.IDs {
			if opts.Max > 0 && stored >= opts.Max {
				break
			}
			msg, err := s.fetchMessage(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return stored, fmt.Errorf("sync canceled: %w", ctx.Err())
				}
				s.Logger.Warn("fetch message failed, skipping", "id", id, "error", err)
				continue
			}
			if err := s.Store.Upsert(ctx, s.snapshotRow(msg)); err != nil {
				return stored, fmt.Errorf("store message %s: %w", id, err)
			}
			stored++
		}

		if page.NextPageToken == "" || (opts.Max > 0 && stored >= opts.Max) {
			break
		}
		token = page.NextPageToken
	}

	total, err := s.Store.Count(ctx)
	if err != nil {
		s.Logger.Warn("count snapshot rows failed", "error", err)
		total = -1
	}
	s.Logger.Info("snapshot sync complete", "stored", stored, "total", total)
	return stored, nil
}

// snapshotRow converts a fetched message into its stored form. Messages
// with missing headers get placeholder values so rules can still match
// on the remaining columns.
func (s *Service) snapshotRow(msg gmail.Message) store.Email {
	subject := msg.Subject
	if subject == "" {
		subject = "No Subject"
	}
	from := msg.From
	if from == "" {
		from = "Unknown Sender"
	}
	date := msg.Date
	if date.IsZero() {
		date = s.Clock()
	}
	return store.Email{
		UniqueID:     string(msg.ID),
		Subject:      subject,
		From:         from,
		DateReceived: date.UTC().Format(store.TimeFormat),
		Message:      msg.Body,
	}
}

func (s *Service) listMessages(
	ctx context.Context,
	query gmail.Query,
	pageToken string,
	pageSize int,
) (gmail.ListPage, error) {
	if err := s.wait(ctx, "rate limit list"); err != nil {
		return gmail.ListPage{}, err
	}
	page, err := s.Client.List(ctx, query, pageToken, pageSize)
	if err != nil {
		return gmail.ListPage{}, fmt.Errorf("list messages: %w", err)
	}
	return page, nil
}

func (s *Service) fetchMessage(ctx context.Context, id gmail.MessageID) (gmail.Message, error) {
	if err := s.wait(ctx, "rate limit fetch"); err != nil {
		return gmail.Message{}, err
	}
	msg, err := s.Client.Get(ctx, id)
	if err != nil {
		return gmail.Message{}, fmt.Errorf("get message %s: %w", id, err)
	}
	return msg, nil
}

func (s *Service) wait(ctx context.Context, operation string) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
