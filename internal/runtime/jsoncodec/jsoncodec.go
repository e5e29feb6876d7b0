package jsoncodec

import (
	"io"
	"reflect"

	"github.com/bytedance/sonic"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

// DecoderFor builds a decode function for T at registration time, so dispatch
// never inspects types per message. T may be a value type or a pointer type;
// pointer targets are allocated per call.
func DecoderFor[T any]() func([]byte) (T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ != nil && typ.Kind() == reflect.Ptr {
		elem := typ.Elem()
		return func(data []byte) (T, error) {
			target := reflect.New(elem).Interface()
			if err := Unmarshal(data, target); err != nil {
				var empty T
				return empty, err
			}
			return target.(T), nil
		}
	}
	if typ == nil {
		// Interface target types cannot be decoded into without a concrete
		// prototype.
		return func([]byte) (T, error) {
			var empty T
			return empty, errspkg.ErrPointerNeeded
		}
	}
	return func(data []byte) (T, error) {
		var target T
		if err := Unmarshal(data, &target); err != nil {
			var empty T
			return empty, err
		}
		return target, nil
	}
}
