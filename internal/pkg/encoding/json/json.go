// Package json wraps the standard encoding with friendlier error messages.
package json

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

func Encode(v any, pretty bool) ([]byte, error) {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, processJSONError(err)
	}
	return data, nil
}

func EncodeString(v any, pretty bool) (string, error) {
	data, err := Encode(v, pretty)
	return string(data), err
}

func MustEncodeString(v any, pretty bool) string {
	data, err := EncodeString(v, pretty)
	if err != nil {
		panic(err)
	}
	return data
}

func Decode(data []byte, m any) error {
	if err := json.Unmarshal(data, m); err != nil {
		return processJSONError(err)
	}
	return nil
}

func DecodeString(data string, m any) error {
	return Decode([]byte(data), m)
}

// DecodeStrict decodes a request body, unknown fields and data after the value are rejected.
func DecodeStrict(r io.Reader, m any) error {
	var buf bytes.Buffer
	dec := json.NewDecoder(io.TeeReader(r, &buf))
	dec.DisallowUnknownFields()
	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) && buf.Len() == 0 {
			return errors.New("request body is empty")
		}
		return processJSONError(err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.Errorf("unexpected data after the JSON value, offset: %d", dec.InputOffset())
	}
	return nil
}

func processJSONError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return errors.Errorf(`key "%s" has invalid type "%s"`, typeErr.Field, typeErr.Value)
	case errors.As(err, &syntaxErr):
		return errors.Errorf("%s, offset: %d", syntaxErr, syntaxErr.Offset)
	default:
		return errors.WithStack(err)
	}
}
