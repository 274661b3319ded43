package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/upstream"
)

// Orchestrator drives the checkout wizard: Shipping -> Payment -> Review,
// with Submitted as the terminal state. Forward transitions are gated on
// per-step validation; placing the order is reachable only from Review.
// The working shipping and payment data live here for one checkout session
// and are discarded once Submitted is reached.
type Orchestrator struct {
	mu        sync.Mutex
	store     *cart.Store
	submitter *Submitter
	creds     upstream.Credentials
	log       *slog.Logger

	step     Step
	shipping ShippingAddress
	card     PaymentCard
	payment  PaymentSummary
	snapshot *Snapshot
}

func NewOrchestrator(store *cart.Store, submitter *Submitter, creds upstream.Credentials, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		submitter: submitter,
		creds:     creds,
		log:       log,
		step:      StepShipping,
	}
}

func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

func (o *Orchestrator) Shipping() ShippingAddress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shipping
}

func (o *Orchestrator) Payment() PaymentSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.payment
}

// Snapshot returns the cart snapshot under review, nil before Review.
func (o *Orchestrator) Snapshot() *Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.snapshot == nil {
		return nil
	}
	cp := *o.snapshot
	cp.Lines = append([]cart.Line(nil), o.snapshot.Lines...)
	return &cp
}

// SetShipping stores the working address. Only valid while the shipping
// step is active.
func (o *Orchestrator) SetShipping(a ShippingAddress) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step != StepShipping {
		return ErrInvalidTransition
	}
	o.shipping = a
	return nil
}

// SetPayment stores the working card data. Only valid while the payment
// step is active.
func (o *Orchestrator) SetPayment(c PaymentCard) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step != StepPayment {
		return ErrInvalidTransition
	}
	o.card = c
	return nil
}

// Next advances one step if the active step validates. On a validation
// failure the state does not change and the error names the first missing
// field.
func (o *Orchestrator) Next() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.step {
	case StepShipping:
		if f := missingShippingField(o.shipping); f != "" {
			return &ValidationError{Field: f}
		}
		o.step = StepPayment
		return nil

	case StepPayment:
		if f := missingPaymentField(o.card); f != "" {
			return &ValidationError{Field: f}
		}
		o.payment = PaymentSummary{Method: "CARD", CardLastFour: lastFour(o.card.CardNumber)}
		o.card = PaymentCard{} // full card data does not leave this step
		o.snapshot = o.snapshotCart()
		o.step = StepReview
		return nil

	default:
		return ErrInvalidTransition
	}
}

// Back steps backward. A no-op at Shipping; the terminal state cannot be
// left.
func (o *Orchestrator) Back() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.step {
	case StepShipping:
		return nil
	case StepPayment:
		o.card = PaymentCard{}
		o.step = StepShipping
		return nil
	case StepReview:
		// returning to payment invalidates the reviewed snapshot and the
		// derived summary; the card must be re-entered
		o.snapshot = nil
		o.payment = PaymentSummary{}
		o.step = StepPayment
		return nil
	default:
		return ErrInvalidTransition
	}
}

// PlaceOrder submits the reviewed snapshot. On full success the cart is
// cleared and the orchestrator reaches Submitted; on partial failure it
// stays at Review and returns the partial result alongside the error.
func (o *Orchestrator) PlaceOrder(ctx context.Context) (*SubmitResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.step != StepReview {
		return nil, ErrInvalidTransition
	}
	if o.snapshot == nil || len(o.snapshot.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	res := o.submitter.Submit(ctx, o.creds, o.store, o.snapshot, o.shipping, o.payment)
	if res.Err != nil {
		return res, res.Err
	}

	o.step = StepSubmitted
	o.shipping = ShippingAddress{}
	o.payment = PaymentSummary{}
	o.snapshot = nil
	return res, nil
}

func (o *Orchestrator) snapshotCart() *Snapshot {
	return &Snapshot{
		Lines:      o.store.Lines(),
		Total:      o.store.Total(),
		CapturedAt: time.Now().UTC(),
	}
}

func missingShippingField(a ShippingAddress) string {
	required := []struct {
		name  string
		value string
	}{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"address", a.Address},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if f.value == "" {
			return f.name
		}
	}
	return ""
}

func missingPaymentField(c PaymentCard) string {
	required := []struct {
		name  string
		value string
	}{
		{"cardHolderName", c.CardHolderName},
		{"cardNumber", c.CardNumber},
		{"expiry", c.Expiry},
		{"cvv", c.CVV},
	}
	for _, f := range required {
		if f.value == "" {
			return f.name
		}
	}
	return ""
}

func lastFour(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-4:]
}
