package timeline

import (
	"context"
	"log/slog"

	"github.com/sentra-orders/sentra/internal/orders"
	"github.com/sentra-orders/sentra/internal/quotes"
)

// OrderSource loads an order with its status history.
type OrderSource interface {
	Get(ctx context.Context, tenantID, id string) (*orders.Order, error)
}

// QuoteSource loads the quotes attached to an order, with their histories.
type QuoteSource interface {
	ListByOrder(ctx context.Context, tenantID, orderID string) ([]quotes.Quote, error)
	Get(ctx context.Context, tenantID, id string) (*quotes.Quote, error)
}

type Service struct {
	orderSource OrderSource
	quoteSource QuoteSource
	cache       *Cache
	logger      *slog.Logger
}

func NewService(orderSource OrderSource, quoteSource QuoteSource, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orderSource: orderSource, quoteSource: quoteSource, cache: cache, logger: logger}
}

// ForOrder returns the order's timeline, generating and caching it on a miss.
func (s *Service) ForOrder(ctx context.Context, tenantID, orderID string) ([]Event, error) {
	if cached, err := s.cache.Get(ctx, tenantID, orderID); err != nil {
		s.logger.Warn("timeline cache read failed", slog.String("order_id", orderID), slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	order, err := s.orderSource.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	quoteList, err := s.quoteSource.ListByOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	// listings come without histories; load each quote fully
	for i := range quoteList {
		full, err := s.quoteSource.Get(ctx, tenantID, quoteList[i].ID)
		if err != nil {
			return nil, err
		}
		quoteList[i] = *full
	}

	events := Generate(order, quoteList)
	if err := s.cache.Set(ctx, tenantID, orderID, events); err != nil {
		s.logger.Warn("timeline cache write failed", slog.String("order_id", orderID), slog.Any("error", err))
	}
	return events, nil
}

// StatsForOrder aggregates the timeline for observability consumers.
func (s *Service) StatsForOrder(ctx context.Context, tenantID, orderID string) (*Stats, error) {
	events, err := s.ForOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(events)
	return &stats, nil
}
