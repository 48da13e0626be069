package domain

import "encoding/json"

// PageEnvelope is the backend's paginated list response. Results stay raw so
// callers decode into whichever entity the collection holds.
type PageEnvelope struct {
	Count    int               `json:"count"`
	Next     string            `json:"next,omitempty"`
	Previous string            `json:"previous,omitempty"`
	Results  []json.RawMessage `json:"results"`
}
