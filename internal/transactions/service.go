package transactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/activity"
	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

const idempotencyModule = "transactions"

// Outcomes reported to MetricsRecorder.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter Filter) ([]Transaction, int, error)
}

// IdempotencyPort reserves request keys so a retried POST is applied once.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// LowStockNotifier hands off products that dropped to their minimum.
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, events []inventory.LowStockEvent) error
}

// CacheInvalidator drops derived reports after stock changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// MetricsRecorder observes recorder outcomes.
type MetricsRecorder interface {
	ObserveTransaction(txType, outcome string, elapsed time.Duration)
	ObserveRetry(txType string)
}

// ServiceConfig tunes the recorder.
type ServiceConfig struct {
	AllowNegativeStock bool
	// MaxRetries bounds re-runs of a unit after a stock conflict or serialization failure.
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 25 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Deps bundles the optional collaborators of Service. Nil members are skipped.
type Deps struct {
	Idempotency IdempotencyPort
	Notifier    LowStockNotifier
	Cache       CacheInvalidator
	Metrics     MetricsRecorder
	Logger      *slog.Logger
}

// Service records transactions against product stock.
type Service struct {
	repo     RepositoryPort
	deps     Deps
	cfg      ServiceConfig
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, deps Deps, cfg ServiceConfig) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		deps:     deps,
		cfg:      cfg.withDefaults(),
		validate: shared.NewValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// Record validates req, then applies every stock change, the transaction
// record and its activity entries as one unit. Conflicting units are re-run
// up to MaxRetries times. Nothing is written when an error is returned.
func (s *Service) Record(ctx context.Context, req Request) (Result, error) {
	start := s.now()
	req = normalize(req)
	if err := s.validateRequest(req); err != nil {
		s.observe(req.Type, OutcomeRejected, start)
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if req.IdempotencyKey != "" && s.deps.Idempotency != nil {
		if err := s.deps.Idempotency.CheckAndInsert(ctx, req.IdempotencyKey, idempotencyModule); err != nil {
			s.observe(req.Type, OutcomeRejected, start)
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Result{}, err
			}
			return Result{}, fmt.Errorf("%w: reserve idempotency key: %w", ErrStorageFailure, err)
		}
	}

	txn, events, err := s.applyWithRetry(ctx, req)
	if err != nil {
		s.releaseKey(ctx, req.IdempotencyKey)
		outcome := OutcomeFailed
		if isRejection(err) {
			outcome = OutcomeRejected
		}
		s.observe(req.Type, outcome, start)
		return Result{}, err
	}

	s.afterCommit(context.WithoutCancel(ctx), txn, events)
	s.observe(req.Type, OutcomeCommitted, start)
	return Result{
		Success: true,
		ID:      txn.ID,
		Message: fmt.Sprintf("%s recorded successfully", txn.Type.Title()),
	}, nil
}

// Get returns a recorded transaction.
func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return Transaction{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns a page of transactions, newest first. A date-only To bound
// covers the whole day.
func (s *Service) List(ctx context.Context, filter Filter) (Page, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return Page{}, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, filter.Type)
	}
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	if !filter.To.IsZero() && filter.To.Equal(filter.To.Truncate(24*time.Hour)) {
		filter.To = filter.To.Add(24*time.Hour - time.Nanosecond)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return Page{}, fmt.Errorf("%w: endDate precedes startDate", ErrInvalidRequest)
	}
	txns, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	if txns == nil {
		txns = []Transaction{}
	}
	return Page{Transactions: txns, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)}, nil
}

func normalize(req Request) Request {
	req.Type = Type(strings.ToLower(strings.TrimSpace(string(req.Type))))
	req.UserID = strings.TrimSpace(req.UserID)
	req.UserEmail = strings.TrimSpace(req.UserEmail)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.PaymentMethod == "" {
		req.PaymentMethod = PaymentCash
	}
	if req.Items != nil {
		items := make([]ItemInput, len(req.Items))
		for i, in := range req.Items {
			in.ProductID = strings.TrimSpace(in.ProductID)
			items[i] = in
		}
		req.Items = items
	}
	return req
}

func (s *Service) validateRequest(req Request) error {
	if err := s.validate.Struct(req); err != nil {
		return shared.ValidationError(ErrInvalidRequest, err)
	}
	sum := decimal.Zero
	for i, in := range req.Items {
		switch {
		case req.Type == TypeCorrection && in.Quantity < 0:
			return fmt.Errorf("%w: items[%d].quantity must be >= 0 for a correction", ErrInvalidRequest, i)
		case req.Type != TypeCorrection && in.Quantity <= 0:
			return fmt.Errorf("%w: items[%d].quantity must be > 0", ErrInvalidRequest, i)
		case in.Quantity > MaxQuantity:
			return fmt.Errorf("%w: items[%d].quantity must be <= %d", ErrInvalidRequest, i, MaxQuantity)
		}
		if reason := shared.CheckMoney(in.Price); reason != "" {
			return fmt.Errorf("%w: items[%d].price %s", ErrInvalidRequest, i, reason)
		}
		if in.Total != nil {
			if reason := shared.CheckMoney(*in.Total); reason != "" {
				return fmt.Errorf("%w: items[%d].total %s", ErrInvalidRequest, i, reason)
			}
		}
		line := lineTotal(in)
		if reason := shared.CheckMoney(line); reason != "" {
			return fmt.Errorf("%w: items[%d] price times quantity %s", ErrInvalidRequest, i, reason)
		}
		sum = sum.Add(line)
	}
	if req.Total != nil {
		sum = *req.Total
	}
	if reason := shared.CheckMoney(sum); reason != "" {
		return fmt.Errorf("%w: total %s", ErrInvalidRequest, reason)
	}
	return nil
}

func (s *Service) applyWithRetry(ctx context.Context, req Request) (Transaction, []inventory.LowStockEvent, error) {
	jitter := s.cfg.RetryBackoff / 2
	if jitter <= 0 {
		jitter = 1
	}
	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxRetries),
		retry.WithJitter(jitter, retry.NewExponential(s.cfg.RetryBackoff)))

	var (
		txn      Transaction
		events   []inventory.LowStockEvent
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if attempts > 1 && s.deps.Metrics != nil {
			s.deps.Metrics.ObserveRetry(string(req.Type))
		}
		var err error
		txn, events, err = s.apply(ctx, req)
		if err != nil && (errors.Is(err, ErrStockConflict) || db.IsRetryable(err)) {
			s.logger.Debug("retrying transaction unit", slog.Int("attempt", attempts), slog.Any("error", err))
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
		return txn, events, nil
	case isRejection(err):
		return Transaction{}, nil, err
	case ctx.Err() != nil:
		return Transaction{}, nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case errors.Is(err, ErrStockConflict) || db.IsRetryable(err):
		return Transaction{}, nil, fmt.Errorf("%w: gave up after %d attempts: %w", ErrStorageFailure, attempts, err)
	default:
		return Transaction{}, nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
}

// apply runs one attempt of the unit.
func (s *Service) apply(ctx context.Context, req Request) (Transaction, []inventory.LowStockEvent, error) {
	now := s.now().UTC()
	txn := Transaction{
		ID:            uuid.NewString(),
		Type:          req.Type,
		Items:         make([]Item, 0, len(req.Items)),
		PaymentMethod: req.PaymentMethod,
		CustomerInfo:  req.CustomerInfo,
		Notes:         req.Notes,
		Status:        StatusCompleted,
		UserID:        req.UserID,
		UserEmail:     req.UserEmail,
		CreatedAt:     now,
	}
	var events []inventory.LowStockEvent

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids := productIDs(req.Items)
		locked, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}
		for _, in := range req.Items {
			if _, ok := locked[in.ProductID]; !ok {
				return fmt.Errorf("%w: %s", ErrProductNotFound, in.ProductID)
			}
		}

		running := make(map[string]int64, len(locked))
		for id, p := range locked {
			running[id] = p.Stock
		}
		entries := make([]activity.Entry, 0, len(req.Items)+1)
		sum := decimal.Zero
		for _, in := range req.Items {
			p := locked[in.ProductID]
			before := running[in.ProductID]
			after := req.Type.Apply(before, in.Quantity)
			if req.Type.Adds() && after < before {
				return fmt.Errorf("%w: stock of %s would exceed %d", ErrInvalidRequest, p.Name, int64(math.MaxInt64))
			}
			if after < 0 && after < before && !s.cfg.AllowNegativeStock {
				return fmt.Errorf("%w: %s has %d, line needs %d", ErrInsufficientStock, p.Name, before, in.Quantity)
			}
			running[in.ProductID] = after

			name := in.ProductName
			if name == "" {
				name = p.Name
			}
			total := lineTotal(in)
			sum = sum.Add(total)
			txn.Items = append(txn.Items, Item{
				ProductID:   in.ProductID,
				ProductName: name,
				Quantity:    in.Quantity,
				Price:       in.Price,
				Total:       total,
			})
			entries = append(entries, activity.Entry{
				ID:            uuid.NewString(),
				Action:        activity.StockAction(string(req.Type)),
				UserID:        req.UserID,
				UserEmail:     req.UserEmail,
				ProductID:     p.ID,
				ProductName:   p.Name,
				TransactionID: txn.ID,
				Details:       fmt.Sprintf("%s: %d units of %s", req.Type.Title(), in.Quantity, p.Name),
				Changes:       activity.StockChange(before, after),
				CreatedAt:     now,
			})
		}
		txn.Total = sum
		if req.Total != nil {
			txn.Total = *req.Total
		}

		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		events = events[:0]
		for _, id := range ids {
			p := locked[id]
			if err := tx.UpdateStock(ctx, id, running[id], p.Version, now); err != nil {
				return err
			}
			if inventory.CrossedMinimum(p.Stock, running[id], p.MinStock) {
				events = append(events, inventory.LowStockEvent{
					ProductID:     id,
					Name:          p.Name,
					Stock:         running[id],
					MinStock:      p.MinStock,
					TransactionID: txn.ID,
					OccurredAt:    now,
				})
			}
		}

		itemsCount := len(txn.Items)
		total := txn.Total
		entries = append(entries, activity.Entry{
			ID:            uuid.NewString(),
			Action:        activity.TransactionAction(string(req.Type)),
			UserID:        req.UserID,
			UserEmail:     req.UserEmail,
			TransactionID: txn.ID,
			Details: fmt.Sprintf("Created %s transaction with %d items - Total: $%s",
				string(req.Type), itemsCount, total.StringFixed(shared.MoneyScale)),
			Total:      &total,
			ItemsCount: &itemsCount,
			CreatedAt:  now,
		})
		return tx.InsertActivity(ctx, entries...)
	})
	if err != nil {
		return Transaction{}, nil, err
	}
	return txn, events, nil
}

// afterCommit runs side effects that must never precede the commit. Their
// failures are logged, the transaction stands.
func (s *Service) afterCommit(ctx context.Context, txn Transaction, events []inventory.LowStockEvent) {
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate inventory cache", slog.String("transaction_id", txn.ID), slog.Any("error", err))
		}
	}
	if len(events) > 0 && s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyLowStock(ctx, events); err != nil {
			s.logger.Warn("enqueue low stock alerts", slog.String("transaction_id", txn.ID), slog.Any("error", err))
		}
	}
	s.logger.Info("transaction recorded",
		slog.String("transaction_id", txn.ID),
		slog.String("type", string(txn.Type)),
		slog.Int("items", len(txn.Items)),
		slog.String("user_id", txn.UserID))
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.deps.Idempotency == nil {
		return
	}
	if err := s.deps.Idempotency.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) observe(t Type, outcome string, start time.Time) {
	if s.deps.Metrics == nil {
		return
	}
	label := string(t)
	if !t.Valid() {
		label = "unknown"
	}
	s.deps.Metrics.ObserveTransaction(label, outcome, s.now().Sub(start))
}

// isRejection reports errors caused by the request rather than by storage.
func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, shared.ErrIdempotencyConflict)
}

// productIDs returns the distinct ids of items in ascending order, the lock order.
func productIDs(items []ItemInput) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, in := range items {
		if _, ok := seen[in.ProductID]; ok {
			continue
		}
		seen[in.ProductID] = struct{}{}
		ids = append(ids, in.ProductID)
	}
	sort.Strings(ids)
	return ids
}
