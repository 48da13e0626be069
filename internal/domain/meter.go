package domain

import "encoding/json"

// MeterReading is a utility meter snapshot taken by an agent. MeterPhoto
// holds a device-local file URI until the sync engine inlines it as a base64
// data URL.
type MeterReading struct {
	Meta
	ID          int64  `json:"id,omitempty"`
	Shop        int64  `json:"shop,omitempty"`
	ShopDetails *Shop  `json:"shop_details,omitempty"`
	AgentName   string `json:"agent_name,omitempty"`
	Value       Money  `json:"value,omitempty"`
	ReadingType string `json:"reading_type,omitempty"`
	ReadingDate string `json:"reading_date,omitempty"`
	ReadingTime string `json:"reading_time,omitempty"`
	MeterPhoto  string `json:"meter_photo,omitempty"`
	Extra       Extra  `json:"-"`
}

func (m MeterReading) MarshalJSON() ([]byte, error) {
	type plain MeterReading
	return MarshalWithExtra(plain(m), m.Extra)
}

func (m *MeterReading) UnmarshalJSON(data []byte) error {
	type plain MeterReading
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*m = MeterReading(p)
	m.Extra = extra
	return nil
}

// SMSRecord is one outbound customer message, kept locally so agents can see
// what was sent even while offline.
type SMSRecord struct {
	Meta
	ID          int64  `json:"id,omitempty"`
	Customer    int64  `json:"customer,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Message     string `json:"message,omitempty"`
	Status      string `json:"status,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	Extra       Extra  `json:"-"`
}

func (s SMSRecord) MarshalJSON() ([]byte, error) {
	type plain SMSRecord
	return MarshalWithExtra(plain(s), s.Extra)
}

func (s *SMSRecord) UnmarshalJSON(data []byte) error {
	type plain SMSRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*s = SMSRecord(p)
	s.Extra = extra
	return nil
}
