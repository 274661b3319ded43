package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/events"
	"github.com/fjod/go_storefront/internal/upstream"
)

// OrdersAPI is the slice of the upstream client the submitter needs.
type OrdersAPI interface {
	CreateOrder(ctx context.Context, creds upstream.Credentials, req upstream.OrderRequest) (upstream.Order, error)
	ClearCart(ctx context.Context, creds upstream.Credentials) error
}

// EventSink receives domain events after a fully successful submission.
type EventSink interface {
	OrdersPlaced(ctx context.Context, ev events.OrderPlaced) error
}

type CreatedOrder struct {
	OrderID   int64
	ProductID int64
	Quantity  int
}

// SubmitResult is the per-line outcome of one submission attempt. FailedAt
// is nil on full success; on failure Created lists the lines that already
// have durable order records.
type SubmitResult struct {
	SubmissionID uuid.UUID
	Created      []CreatedOrder
	FailedAt     *cart.Line
	Err          error
}

// Submitter converts a reviewed cart snapshot into durable order records:
// one order-creation request per line, issued sequentially. There is no
// atomic multi-line primitive upstream, so a mid-sequence failure leaves
// the earlier orders in place; the submitter stops, reports what was
// created, and leaves the cart untouched so a retry cannot double-order
// the completed lines.
type Submitter struct {
	api    OrdersAPI
	events EventSink
	log    *slog.Logger
}

func NewSubmitter(api OrdersAPI, sink EventSink, log *slog.Logger) *Submitter {
	return &Submitter{api: api, events: sink, log: log}
}

func (s *Submitter) Submit(ctx context.Context, creds upstream.Credentials, store *cart.Store,
	snap *Snapshot, shipping ShippingAddress, payment PaymentSummary) *SubmitResult {

	res := &SubmitResult{SubmissionID: uuid.New()}
	details := shipping.wire(payment)

	for i := range snap.Lines {
		line := snap.Lines[i]
		order, err := s.api.CreateOrder(ctx, creds, upstream.OrderRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Shipping:  details,
		})
		if err != nil {
			failed := line
			res.FailedAt = &failed
			res.Err = &PartialSubmissionError{
				CreatedOrderIDs: orderIDs(res.Created),
				FailedProductID: line.ProductID,
				Cause:           err,
			}
			s.log.Warn("order submission stopped",
				"submission_id", res.SubmissionID.String(),
				"created", len(res.Created),
				"failed_product_id", line.ProductID,
				"error", err)
			return res
		}
		res.Created = append(res.Created, CreatedOrder{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	// All lines are durable; the remote cart still holds them as "In Cart"
	// records, so clear it before the local store.
	if err := s.api.ClearCart(ctx, creds); err != nil {
		s.log.Warn("orders created but remote cart clear failed",
			"submission_id", res.SubmissionID.String(), "error", err)
	}
	store.Clear()

	if s.events != nil {
		_ = s.events.OrdersPlaced(ctx, events.OrderPlaced{
			SubmissionID: res.SubmissionID.String(),
			UserID:       creds.UserID,
			OrderIDs:     orderIDs(res.Created),
			TotalCents:   int64(snap.Total),
			Currency:     "USD",
			PlacedAt:     time.Now().UTC(),
		})
	}

	s.log.Info("submission complete",
		"submission_id", res.SubmissionID.String(), "orders", len(res.Created))
	return res
}

func orderIDs(created []CreatedOrder) []int64 {
	ids := make([]int64, 0, len(created))
	for _, c := range created {
		ids = append(ids, c.OrderID)
	}
	return ids
}
