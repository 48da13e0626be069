package domain

// TokenPair is the backend's JWT response. Refresh is empty when the server
// chose not to rotate it.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}
