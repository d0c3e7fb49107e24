package registry

import (
	"encoding/json"
	"maps"
)

// Sculpture is one registry record. Fields the registry does not model are
// preserved in Extra and written back on marshal.
type Sculpture struct {
	Serial        string                     `json:"serial"`
	TokenID       string                     `json:"token_id"`
	PhysicalOwner string                     `json:"physical_owner"`
	Location      string                     `json:"location"`
	Extra         map[string]json.RawMessage `json:"-"`
}

var sculptureKeys = []string{"serial", "token_id", "physical_owner", "location"}

func (s *Sculpture) UnmarshalJSON(data []byte) error {
	type plain Sculpture
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range sculptureKeys {
		delete(all, k)
	}
	*s = Sculpture(p)
	if len(all) > 0 {
		s.Extra = all
	}
	return nil
}

func (s Sculpture) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+len(sculptureKeys))
	for k, v := range s.Extra {
		out[k] = v
	}
	out["serial"] = s.Serial
	out["token_id"] = s.TokenID
	out["physical_owner"] = s.PhysicalOwner
	out["location"] = s.Location
	return json.Marshal(out)
}

// Field returns a pass-through field as a string, "" when absent or not a
// string.
func (s Sculpture) Field(name string) string {
	raw, ok := s.Extra[name]
	if !ok {
		return ""
	}
	var v string
	if json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return v
}

func (s *Sculpture) clone() *Sculpture {
	if s == nil {
		return nil
	}
	c := *s
	c.Extra = maps.Clone(s.Extra)
	return &c
}

// Statistics aggregates the registry.
type Statistics struct {
	TotalMinted        int `json:"totalMinted"`
	TotalTransfers     int `json:"totalTransfers"`
	SeparatedOwnership int `json:"separatedOwnership"`
	Countries          int `json:"countries"`
}

// Verification is the outcome of an ownership check.
type Verification struct {
	Verified  bool   `json:"verified"`
	Owner     string `json:"owner,omitempty"`
	TokenID   string `json:"tokenId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Transfer is one ownership event.
type Transfer struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

// Update is one pushed registry event, e.g.
// {"type":"status_update","data":{"serial":"001","status":"Delivered"}}.
// Type and Data are filled only when the frame is an object whose data is
// an object; Raw always holds the frame as received.
type Update struct {
	Type string          `json:"type"`
	Data map[string]any  `json:"data,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

// ParseUpdate accepts any well-formed JSON frame.
func ParseUpdate(frame []byte) (Update, error) {
	var v any
	if err := json.Unmarshal(frame, &v); err != nil {
		return Update{}, err
	}
	u := Update{Raw: append(json.RawMessage(nil), frame...)}
	if obj, ok := v.(map[string]any); ok {
		u.Type, _ = obj["type"].(string)
		u.Data, _ = obj["data"].(map[string]any)
	}
	return u, nil
}
