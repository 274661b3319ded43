package checkout

import (
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/upstream"
)

type Step string

const (
	StepShipping  Step = "SHIPPING"
	StepPayment   Step = "PAYMENT"
	StepReview    Step = "REVIEW"
	StepSubmitted Step = "SUBMITTED"
)

func (s Step) String() string { return string(s) }

// ShippingAddress is collected on the first step. Phone is the only
// optional field.
type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

// PaymentCard holds full card data while the payment step is active. It is
// wiped the moment the step is left; only the derived PaymentSummary
// survives past that point.
type PaymentCard struct {
	CardHolderName string `json:"cardHolderName"`
	CardNumber     string `json:"cardNumber"`
	Expiry         string `json:"expiry"`
	CVV            string `json:"cvv"`
}

// PaymentSummary is the non-sensitive projection retained for the order
// snapshot.
type PaymentSummary struct {
	Method       string `json:"method"`
	CardLastFour string `json:"cardLastFour"`
}

// Snapshot is the cart state captured when entering the review step, so a
// concurrent cart mutation cannot change what gets submitted after the user
// reviewed it.
type Snapshot struct {
	Lines      []cart.Line
	Total      pricing.Cents
	CapturedAt time.Time
}

func (s ShippingAddress) wire(p PaymentSummary) upstream.ShippingDetails {
	return upstream.ShippingDetails{
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		Address:       s.Address,
		City:          s.City,
		State:         s.State,
		ZipCode:       s.ZipCode,
		Country:       s.Country,
		Phone:         s.Phone,
		PaymentMethod: p.Method,
		CardLastFour:  p.CardLastFour,
	}
}
