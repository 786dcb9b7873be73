//go:build nojsonsimd

// Package jsonx is the JSON codec used for submission bodies and queue
// entries. Build with -tags nojsonsimd to fall back to encoding/json.
package jsonx

import stdjson "encoding/json"

func Marshal(v interface{}) ([]byte, error) {
	return stdjson.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return stdjson.Unmarshal(data, v)
}
