package videoreader

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Extras is the per-frame side-channel metadata requested at open time,
// keyed by the requested names (e.g. "pts", "pkt_dts").
type Extras map[string]any

// Float64 returns a numeric extra as float64.
func (e Extras) Float64(key string) (float64, bool) {
	switch v := e[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case int8, int16, int32, uint8, uint16, uint32, int, uint:
		n, _ := toInt64(v)
		return float64(n), true
	default:
		return 0, false
	}
}

// Int64 returns an integral extra as int64.
func (e Extras) Int64(key string) (int64, bool) {
	return toInt64(e[key])
}

// Bytes returns a binary extra.
func (e Extras) Bytes(key string) ([]byte, bool) {
	b, ok := e[key].([]byte)
	return b, ok
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint:
		return int64(n), true
	default:
		return 0, false
	}
}

// DecodeExtras decodes an engine extras blob.
//
// The blob is a single MessagePack value: either a map with string keys, or
// an array holding one value per requested key in request order.
func DecodeExtras(blob []byte, keys []string) (Extras, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(blob))
	dec.UseLooseInterfaceDecoding(true)
	dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) {
		return d.DecodeUntypedMap()
	})

	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, fmt.Errorf("decode extras: %w", err)
	}

	switch t := v.(type) {
	case []any:
		if len(t) != len(keys) {
			return nil, fmt.Errorf("%w: %d values for %d keys", ErrExtrasMismatch, len(t), len(keys))
		}
		out := make(Extras, len(keys))
		for i, k := range keys {
			out[k] = t[i]
		}
		return out, nil
	case map[any]any:
		out := make(Extras, len(t))
		for k, val := range t {
			name, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string key %v", ErrExtrasMismatch, k)
			}
			out[name] = val
		}
		return out, nil
	case map[string]any:
		return Extras(t), nil
	default:
		return nil, fmt.Errorf("%w: unexpected %T", ErrExtrasMismatch, v)
	}
}

// EncodeExtras packs values in key order, the layout engines produce.
// Keys missing from e are encoded as nil.
func EncodeExtras(e Extras, keys []string) ([]byte, error) {
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = e[k]
	}
	return msgpack.Marshal(values)
}
