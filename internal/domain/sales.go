package domain

import "encoding/json"

// PaymentMode is how a transaction was settled.
type PaymentMode string

const (
	PaymentMpesa  PaymentMode = "MPESA"
	PaymentCash   PaymentMode = "CASH"
	PaymentCredit PaymentMode = "CREDIT"
)

// Refill is a water refill transaction, the loyalty-bearing sale type.
type Refill struct {
	Meta
	ID                   int64        `json:"id,omitempty"`
	Customer             int64        `json:"customer,omitempty"`
	CustomerDetails      *CustomerRef `json:"customer_details,omitempty"`
	Shop                 int64        `json:"shop,omitempty"`
	ShopDetails          *Shop        `json:"shop_details,omitempty"`
	Package              int64        `json:"package,omitempty"`
	PackageDetails       *Package     `json:"package_details,omitempty"`
	Quantity             int          `json:"quantity,omitempty"`
	PaymentMode          PaymentMode  `json:"payment_mode,omitempty"`
	Cost                 Money        `json:"cost,omitempty"`
	IsFree               bool         `json:"is_free,omitempty"`
	IsPartiallyFree      bool         `json:"is_partially_free,omitempty"`
	FreeQuantity         int          `json:"free_quantity,omitempty"`
	PaidQuantity         int          `json:"paid_quantity,omitempty"`
	LoyaltyRefillCount   int          `json:"loyalty_refill_count,omitempty"`
	Delivered            bool         `json:"delivered,omitempty"`
	CreatedAt            string       `json:"created_at,omitempty"`
	AgentName            string       `json:"agent_name,omitempty"`
	IsNextRefillFree     bool         `json:"is_next_refill_free,omitempty"`
	FreeRefillsAvailable int          `json:"free_refills_available,omitempty"`
	Extra                Extra        `json:"-"`
}

func (r Refill) MarshalJSON() ([]byte, error) {
	type plain Refill
	return MarshalWithExtra(plain(r), r.Extra)
}

func (r *Refill) UnmarshalJSON(data []byte) error {
	type plain Refill
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*r = Refill(p)
	r.Extra = extra
	return nil
}

// Sale is a bottle or bundle sale.
type Sale struct {
	Meta
	ID              int64        `json:"id,omitempty"`
	Customer        int64        `json:"customer,omitempty"`
	CustomerDetails *CustomerRef `json:"customer_details,omitempty"`
	Shop            int64        `json:"shop,omitempty"`
	ShopDetails     *Shop        `json:"shop_details,omitempty"`
	Package         int64        `json:"package,omitempty"`
	PackageDetails  *Package     `json:"package_details,omitempty"`
	Quantity        int          `json:"quantity,omitempty"`
	PaymentMode     PaymentMode  `json:"payment_mode,omitempty"`
	Cost            Money        `json:"cost,omitempty"`
	SoldAt          string       `json:"sold_at,omitempty"`
	AgentName       string       `json:"agent_name,omitempty"`
	Extra           Extra        `json:"-"`
}

func (s Sale) MarshalJSON() ([]byte, error) {
	type plain Sale
	return MarshalWithExtra(plain(s), s.Extra)
}

func (s *Sale) UnmarshalJSON(data []byte) error {
	type plain Sale
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*s = Sale(p)
	s.Extra = extra
	return nil
}

// Credit is a repayment against a customer's outstanding credit.
type Credit struct {
	Meta
	ID              int64        `json:"id,omitempty"`
	Customer        int64        `json:"customer,omitempty"`
	CustomerDetails *CustomerRef `json:"customer_details,omitempty"`
	Shop            int64        `json:"shop,omitempty"`
	ShopDetails     *Shop        `json:"shop_details,omitempty"`
	MoneyPaid       Money        `json:"money_paid,omitempty"`
	PaymentMode     PaymentMode  `json:"payment_mode,omitempty"`
	PaymentDate     string       `json:"payment_date,omitempty"`
	AgentName       string       `json:"agent_name,omitempty"`
	CreatedAt       string       `json:"created_at,omitempty"`
	ModifiedAt      string       `json:"modified_at,omitempty"`
	Extra           Extra        `json:"-"`
}

func (c Credit) MarshalJSON() ([]byte, error) {
	type plain Credit
	return MarshalWithExtra(plain(c), c.Extra)
}

func (c *Credit) UnmarshalJSON(data []byte) error {
	type plain Credit
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*c = Credit(p)
	c.Extra = extra
	return nil
}

// Expense is an operating cost entry. ReceiptImage holds a device-local file
// URI until the sync engine inlines it as a base64 data URL; Receipt is the
// server-side stored copy.
type Expense struct {
	Meta
	ID           int64  `json:"id,omitempty"`
	Shop         int64  `json:"shop,omitempty"`
	ShopDetails  *Shop  `json:"shop_details,omitempty"`
	Description  string `json:"description,omitempty"`
	Cost         Money  `json:"cost,omitempty"`
	Receipt      string `json:"receipt,omitempty"`
	ReceiptImage string `json:"receipt_image,omitempty"`
	AgentName    string `json:"agent_name,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	Extra        Extra  `json:"-"`
}

func (e Expense) MarshalJSON() ([]byte, error) {
	type plain Expense
	return MarshalWithExtra(plain(e), e.Extra)
}

func (e *Expense) UnmarshalJSON(data []byte) error {
	type plain Expense
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*e = Expense(p)
	e.Extra = extra
	return nil
}
