package domain

import "encoding/json"

// Loyalty is the server-computed loyalty block on a customer record. The
// offline loyalty check recomputes the same numbers from CurrentPoints and
// the shop's interval.
type Loyalty struct {
	CurrentPoints       int `json:"current_points"`
	RefillsUntilFree    int `json:"refills_until_free"`
	FreeRefillsRedeemed int `json:"free_refills_redeemed"`
}

// Customer is a registered water customer. The shop field is write-only on
// the backend, so reads carry shop_details instead.
type Customer struct {
	Meta
	ID             int64            `json:"id,omitempty"`
	Shop           int64            `json:"shop,omitempty"`
	ShopDetails    *Shop            `json:"shop_details,omitempty"`
	Names          string           `json:"names,omitempty"`
	PhoneNumber    string           `json:"phone_number,omitempty"`
	ApartmentName  string           `json:"apartment_name,omitempty"`
	RoomNumber     string           `json:"room_number,omitempty"`
	DateRegistered string           `json:"date_registered,omitempty"`
	RefillCount    int              `json:"refill_count,omitempty"`
	Packages       []PackageSummary `json:"packages,omitempty"`
	Loyalty        *Loyalty         `json:"loyalty,omitempty"`
	ActivityStatus string           `json:"activity_status,omitempty"`
	CreditBalance  Money            `json:"credit_balance,omitempty"`
	Extra          Extra            `json:"-"`
}

func (c Customer) MarshalJSON() ([]byte, error) {
	type plain Customer
	return MarshalWithExtra(plain(c), c.Extra)
}

func (c *Customer) UnmarshalJSON(data []byte) error {
	type plain Customer
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*c = Customer(p)
	c.Extra = extra
	return nil
}

// CustomerRef is the trimmed customer object nested in transaction records.
type CustomerRef struct {
	ID          int64  `json:"id"`
	Shop        int64  `json:"shop,omitempty"`
	Names       string `json:"names"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// LoyaltyCheck is the outcome of pricing a refill against the loyalty
// program. FromCache marks results computed locally from cached state while
// the backend was unreachable.
type LoyaltyCheck struct {
	FreeQuantity         int   `json:"free_quantity"`
	PaidQuantity         int   `json:"paid_quantity"`
	TotalCost            Money `json:"total_cost"`
	RefillsUntilNextFree int   `json:"refills_until_next_free"`
	FromCache            bool  `json:"_fromCache,omitempty"`
}
