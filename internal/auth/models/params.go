package models

import (
	"net/url"
	"strings"
)

// Params is an insertion-ordered string mapping. The encoded form keeps that order so
// the URL shown to the operator is byte-identical to the one that gets used.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams returns an empty Params.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set adds key or overwrites it in place, keeping its original position.
func (p *Params) Set(key, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value for key.
func (p *Params) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Del removes key.
func (p *Params) Del(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of entries.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Map returns an unordered copy.
func (p *Params) Map() map[string]string {
	out := make(map[string]string, p.Len())
	if p == nil {
		return out
	}
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Values converts to url.Values for form bodies.
func (p *Params) Values() url.Values {
	out := make(url.Values, p.Len())
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out.Set(k, p.values[k])
	}
	return out
}

// Encode returns the urlencoded form in insertion order.
func (p *Params) Encode() string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.values[k]))
	}
	return sb.String()
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	out := NewParams()
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out.Set(k, p.values[k])
	}
	return out
}
