package domain

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Meta carries the client-side bookkeeping attached to locally originated
// records. Pending records sit at the front of a cached collection until the
// sync engine confirms them; after confirmation the server id supersedes the
// client id and the marker fields are gone.
type Meta struct {
	ClientID     string `json:"client_id,omitempty"`
	Pending      bool   `json:"_pending,omitempty"`
	LocalCreated string `json:"_createdAt,omitempty"`
}

// Extra holds server fields the typed structs do not model, so a cache
// round-trip never drops data the backend added after this client shipped.
type Extra map[string]json.RawMessage

// MarshalWithExtra renders v and overlays the extra fields that do not
// collide with a typed field. v must be an alias type without custom codecs.
func MarshalWithExtra(v any, extra Extra) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := m[k]; !ok {
			m[k] = raw
		}
	}
	return json.Marshal(m)
}

// DecodeExtra returns the fields of data that v's type does not declare.
func DecodeExtra(data []byte, v any) (Extra, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for _, name := range knownJSONFields(reflect.TypeOf(v)) {
		delete(m, name)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return Extra(m), nil
}

func knownJSONFields(t reflect.Type) []string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			names = append(names, knownJSONFields(f.Type)...)
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "" {
			name = f.Name
		}
		names = append(names, name)
	}
	return names
}
