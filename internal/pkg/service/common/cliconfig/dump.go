package cliconfig

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

type KVs []KV

type KV struct {
	Key   string
	Value string
}

func (v KVs) String() string {
	var out strings.Builder
	for i, kv := range v {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(kv.Key)
		out.WriteString("=")
		out.WriteString(kv.Value)
		out.WriteString(";")
	}
	return out.String()
}

// Dump a configuration structure as key-value pairs, fields tagged `sensitive:"true"` are skipped.
func Dump(config any) (KVs, error) {
	v := reflect.ValueOf(config)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	out := make(KVs, 0)
	if err := dump(v, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func dump(v reflect.Value, parent string, out *KVs) error {
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" || field.Tag.Get("sensitive") == "true" {
			continue
		}

		key := name
		if parent != "" {
			key = parent + "." + name
		}

		if err := dumpField(key, v.Field(i), out); err != nil {
			return err
		}
	}
	return nil
}

func dumpField(key string, v reflect.Value, out *KVs) error {
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		*out = append(*out, KV{Key: key, Value: "<nil>"})
		return nil
	}

	// Methods may be defined on the pointer type
	ptr := v
	if v.Kind() != reflect.Pointer {
		ptr = reflect.New(v.Type())
		ptr.Elem().Set(v)
	}

	var str string
	switch value := ptr.Interface().(type) {
	case fmt.Stringer:
		str = value.String()
	case encoding.TextMarshaler:
		text, err := value.MarshalText()
		if err != nil {
			return err
		}
		str = string(text)
	default:
		if ptr.Elem().Kind() == reflect.Struct {
			return dump(ptr.Elem(), key, out)
		}
		str = cast.ToString(ptr.Elem().Interface())
	}

	*out = append(*out, KV{Key: key, Value: str})
	return nil
}
