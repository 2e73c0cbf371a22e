package document

import (
	"bytes"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// jsonOptions tolerate duplicate member names. When decoding an object the
// last value wins and keeps the position of the first occurrence.
var jsonOptions = jsontext.AllowDuplicateNames(true)

// Member is one name/value pair of a JSON object. Value is kept as raw JSON
// and never interpreted.
type Member struct {
	Name  string
	Value jsontext.Value
}

// Object is a JSON object that preserves member order.
type Object []Member

// Get returns the value stored under name.
func (o Object) Get(name string) (jsontext.Value, bool) {
	for i := range o {
		if o[i].Name == name {
			return o[i].Value, true
		}
	}
	return nil, false
}

// Has reports whether name is present.
func (o Object) Has(name string) bool {
	_, ok := o.Get(name)
	return ok
}

// Set replaces the value of an existing member in place, or appends a new
// member when name is not present yet.
func (o *Object) Set(name string, value jsontext.Value) {
	for i := range *o {
		if (*o)[i].Name == name {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Member{Name: name, Value: value})
}

// Names returns the member names in order.
func (o Object) Names() []string {
	names := make([]string, len(o))
	for i := range o {
		names[i] = o[i].Name
	}
	return names
}

// MarshalJSONTo encodes o as a JSON object, member order intact.
func (o Object) MarshalJSONTo(enc *jsontext.Encoder) error {
	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return err
	}
	for i := range o {
		if err := enc.WriteToken(jsontext.String(o[i].Name)); err != nil {
			return err
		}
		v := o[i].Value
		if len(v) == 0 {
			v = jsontext.Value("null")
		}
		if err := enc.WriteValue(v); err != nil {
			return fmt.Errorf("member %q: %w", o[i].Name, err)
		}
	}
	return enc.WriteToken(jsontext.EndObject)
}

// UnmarshalJSONFrom decodes a JSON object from dec into o.
func (o *Object) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	if k := dec.PeekKind(); k != '{' {
		return &json.SemanticError{JSONKind: k}
	}
	if _, err := dec.ReadToken(); err != nil {
		return err
	}
	*o = (*o)[:0]
	for dec.PeekKind() != '}' {
		tok, err := dec.ReadToken()
		if err != nil {
			return err
		}
		name := tok.String()
		val, err := dec.ReadValue()
		if err != nil {
			return err
		}
		o.Set(name, val.Clone())
	}
	_, err := dec.ReadToken()
	return err
}

// Value returns the compact JSON encoding of o.
func (o Object) Value() (jsontext.Value, error) {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf, jsonOptions)
	if err := o.MarshalJSONTo(enc); err != nil {
		return nil, err
	}
	return jsontext.Value(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// ParseObject decodes raw JSON into an Object. It fails when the value is
// not an object.
func ParseObject(raw []byte) (Object, error) {
	var o Object
	if err := json.Unmarshal(raw, &o, jsonOptions); err != nil {
		return nil, err
	}
	return o, nil
}

// asObject returns v as an Object when it is a JSON object.
func asObject(v jsontext.Value) (Object, bool) {
	if v.Kind() != '{' {
		return nil, false
	}
	o, err := ParseObject(v)
	if err != nil {
		return nil, false
	}
	return o, true
}

// asArray returns the elements of v when it is a JSON array.
func asArray(v jsontext.Value) ([]jsontext.Value, bool) {
	if v.Kind() != '[' {
		return nil, false
	}
	var items []jsontext.Value
	if err := json.Unmarshal(v, &items, jsonOptions); err != nil {
		return nil, false
	}
	return items, true
}

// isNull reports whether v is missing or the JSON null literal.
func isNull(v jsontext.Value) bool {
	return len(v) == 0 || v.Kind() == 'n'
}

// Text renders a scalar member as a plain string: JSON strings are unquoted,
// null becomes empty, and any other value is kept as compact JSON text.
func Text(v jsontext.Value) string {
	switch {
	case isNull(v):
		return ""
	case v.Kind() == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return string(v)
		}
		return s
	default:
		c := v.Clone()
		if err := c.Compact(); err != nil {
			return string(v)
		}
		return string(c)
	}
}

// StringValue encodes s as a JSON string value.
func StringValue(s string) jsontext.Value {
	// Invalid UTF-8 is replaced with U+FFFD and still yields a usable literal.
	b, _ := jsontext.AppendQuote(nil, s)
	return b
}

// arrayValue encodes items as a compact JSON array.
func arrayValue(items []jsontext.Value) (jsontext.Value, error) {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf, jsonOptions)
	if err := enc.WriteToken(jsontext.BeginArray); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := enc.WriteValue(item); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteToken(jsontext.EndArray); err != nil {
		return nil, err
	}
	return jsontext.Value(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
