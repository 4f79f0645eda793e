package value

import "encoding/json"

// MarshalJSON encodes v using the standard JSON shapes.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON decodes raw JSON into v, rejecting non-finite numbers
// the same way From does (they cannot occur via encoding/json, but the
// check is kept for symmetry with From and to guard against future
// decoders).
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := From(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
