package domain

import "encoding/json"

// Shop is a vendor location. Field names follow the backend's model
// attributes verbatim, camelCase included.
type Shop struct {
	ID                 int64  `json:"id"`
	ShopName           string `json:"shopName"`
	FreeRefillInterval int    `json:"freeRefillInterval"`
	Extra              Extra  `json:"-"`
}

func (s Shop) MarshalJSON() ([]byte, error) {
	type plain Shop
	return MarshalWithExtra(plain(s), s.Extra)
}

func (s *Shop) UnmarshalJSON(data []byte) error {
	type plain Shop
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*s = Shop(p)
	s.Extra = extra
	return nil
}

// Package is a sellable water product. The catalog is populated wholesale by
// the offline export endpoint rather than paginated reads.
type Package struct {
	ID               int64  `json:"id"`
	WaterAmountLabel string `json:"water_amount_label"`
	BottleType       string `json:"bottle_type,omitempty"`
	Description      string `json:"description,omitempty"`
	Price            Money  `json:"price"`
	SaleType         string `json:"sale_type"`
	Shop             int64  `json:"shop,omitempty"`
	ShopDetails      *Shop  `json:"shop_details,omitempty"`
	Extra            Extra  `json:"-"`
}

func (p Package) MarshalJSON() ([]byte, error) {
	type plain Package
	return MarshalWithExtra(plain(p), p.Extra)
}

func (p *Package) UnmarshalJSON(data []byte) error {
	type plain Package
	var pp plain
	if err := json.Unmarshal(data, &pp); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, pp)
	if err != nil {
		return err
	}
	*p = Package(pp)
	p.Extra = extra
	return nil
}

// PackageSummary is the per-package purchase rollup nested in customer
// records.
type PackageSummary struct {
	ID            int64   `json:"id"`
	WaterAmount   float64 `json:"water_amount"`
	SaleType      string  `json:"sale_type"`
	BottleType    string  `json:"bottle_type,omitempty"`
	Description   string  `json:"description,omitempty"`
	Count         int     `json:"count"`
	TotalQuantity int     `json:"total_quantity"`
}

// ExportEnvelope is the response shape of the offline export endpoints.
type ExportEnvelope struct {
	Results    []json.RawMessage `json:"results"`
	Count      int               `json:"count"`
	ExportType string            `json:"export_type"`
}
