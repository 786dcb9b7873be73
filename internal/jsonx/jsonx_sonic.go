//go:build !nojsonsimd

// Package jsonx is the JSON codec used for submission bodies and queue
// entries. Build with -tags nojsonsimd to fall back to encoding/json.
package jsonx

import "github.com/bytedance/sonic"

var fastJSON = sonic.ConfigStd

func Marshal(v interface{}) ([]byte, error) {
	return fastJSON.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return fastJSON.Unmarshal(data, v)
}
