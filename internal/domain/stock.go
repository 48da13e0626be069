package domain

import "encoding/json"

// StockItem is a tracked inventory line. LowStock is the server's own flag;
// the local low-stock view also compares Quantity against the threshold so a
// stale flag cannot hide a shortage.
type StockItem struct {
	ID                int64  `json:"id"`
	Shop              int64  `json:"shop,omitempty"`
	ItemName          string `json:"item_name"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold int    `json:"low_stock_threshold,omitempty"`
	LowStock          bool   `json:"low_stock,omitempty"`
	Extra             Extra  `json:"-"`
}

func (s StockItem) MarshalJSON() ([]byte, error) {
	type plain StockItem
	return MarshalWithExtra(plain(s), s.Extra)
}

func (s *StockItem) UnmarshalJSON(data []byte) error {
	type plain StockItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*s = StockItem(p)
	s.Extra = extra
	return nil
}

// StockLog is a manual inventory adjustment. QuantityChange is signed.
type StockLog struct {
	Meta
	ID             int64  `json:"id,omitempty"`
	Shop           int64  `json:"shop,omitempty"`
	StockItem      int64  `json:"stock_item,omitempty"`
	ItemName       string `json:"item_name,omitempty"`
	QuantityChange int    `json:"quantity_change,omitempty"`
	Reason         string `json:"reason,omitempty"`
	LogDate        string `json:"log_date,omitempty"`
	AgentName      string `json:"agent_name,omitempty"`
	Extra          Extra  `json:"-"`
}

func (s StockLog) MarshalJSON() ([]byte, error) {
	type plain StockLog
	return MarshalWithExtra(plain(s), s.Extra)
}

func (s *StockLog) UnmarshalJSON(data []byte) error {
	type plain StockLog
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*s = StockLog(p)
	s.Extra = extra
	return nil
}
