package querycache

import (
	"net/url"
	"strings"
)

// Key identifies a cached query by endpoint and parameter values.
type Key struct {
	Endpoint string
	Params   map[string]string
}

// NewKey builds a key. kv is a flat list of parameter name/value pairs;
// pairs with an empty value are dropped.
func NewKey(endpoint string, kv ...string) Key {
	k := Key{Endpoint: endpoint}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		if k.Params == nil {
			k.Params = make(map[string]string)
		}
		k.Params[kv[i]] = kv[i+1]
	}
	return k
}

// String is the canonical form: endpoint followed by the sorted, encoded params.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Endpoint
	}
	values := url.Values{}
	for name, v := range k.Params {
		values.Set(name, v)
	}
	return k.Endpoint + "?" + values.Encode()
}

// HasPrefix reports whether the key belongs to an endpoint family.
func (k Key) HasPrefix(prefix string) bool {
	return strings.HasPrefix(k.String(), prefix)
}
