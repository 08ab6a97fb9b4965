package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Dimensions stores a manifest item's measurements as JSONB, in inches.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Value serializes the dimensions to JSON.
func (d *Dimensions) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan decodes JSONB into the dimensions struct.
func (d *Dimensions) Scan(value interface{}) error {
	if value == nil {
		*d = Dimensions{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, d)
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
