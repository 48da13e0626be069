package domain

import "encoding/json"

// UserProfile is the authenticated agent's account record from users/me/.
type UserProfile struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	UserClass   string `json:"user_class,omitempty"`
	Shop        int64  `json:"shop,omitempty"`
	ShopDetails *Shop  `json:"shop_details,omitempty"`
	Extra       Extra  `json:"-"`
}

func (u UserProfile) MarshalJSON() ([]byte, error) {
	type plain UserProfile
	return MarshalWithExtra(plain(u), u.Extra)
}

func (u *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := DecodeExtra(data, p)
	if err != nil {
		return err
	}
	*u = UserProfile(p)
	u.Extra = extra
	return nil
}
