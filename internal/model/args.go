package model

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// JSONValue converts a decoded ABI value into a JSON friendly value.
// Integers wider than 64 bits become decimal strings, byte arrays become
// 0x-prefixed hex, nested records become maps.
func JSONValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case nil:
		return nil
	case *big.Int:
		if typed == nil {
			return nil
		}
		return typed.String()
	case common.Address:
		return typed.Hex()
	case common.Hash:
		return typed.Hex()
	case [32]byte:
		return hexutil.Encode(typed[:])
	case []byte:
		return hexutil.Encode(typed)
	case string, bool, uint8, uint16, uint32, uint64, int8, int16, int32, int64, int, uint:
		return typed
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, item := range typed {
			out[k] = JSONValue(item)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(buf), rv)
			return hexutil.Encode(buf)
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = JSONValue(rv.Index(i).Interface())
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatArg renders a decoded ABI value for display.
func FormatArg(v interface{}) string {
	switch typed := JSONValue(v).(type) {
	case nil:
		return "<nil>"
	case string:
		return typed
	case []interface{}:
		parts := make([]string, len(typed))
		for i, item := range typed {
			parts[i] = FormatArg(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatArg(typed[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", typed)
	}
}
