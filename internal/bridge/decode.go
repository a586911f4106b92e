package bridge

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// decodeArgs decodes raw as a JSON array holding exactly one value per
// declared parameter type, in order. The decode is strict: unknown object
// fields are rejected, duplicate fields keep the first occurrence, numeric
// overflow aborts the call. Any failure aborts the whole call; no partial
// application. All scratch state is call-local.
func decodeArgs(raw string, params []reflect.Type) ([]reflect.Value, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, protocolErrf("malformed argument text: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, protocolErrf("argument text must be a JSON array")
	}

	vals := make([]reflect.Value, len(params))
	for i, pt := range params {
		if !dec.More() {
			return nil, protocolErrf("argument %d missing, want %s", i+1, pt)
		}
		rv := reflect.New(pt).Elem()
		if err := decodeNext(dec, rv); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		vals[i] = rv
	}

	if dec.More() {
		return nil, protocolErrf("trailing arguments, want exactly %d", len(params))
	}
	if tok, err = dec.Token(); err != nil {
		return nil, protocolErrf("unterminated argument array: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != ']' {
		return nil, protocolErrf("argument array not closed")
	}
	return vals, nil
}

// decodeNext consumes exactly one JSON value from the stream into rv.
func decodeNext(dec *json.Decoder, rv reflect.Value) error {
	tok, err := dec.Token()
	if err != nil {
		return protocolErrf("truncated value: %v", err)
	}
	return decodeToken(dec, tok, rv)
}

func decodeToken(dec *json.Decoder, tok json.Token, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Pointer:
		// Pointers model optional values: null decodes to nil.
		if tok == nil {
			rv.SetZero()
			return nil
		}
		rv.Set(reflect.New(rv.Type().Elem()))
		return decodeToken(dec, tok, rv.Elem())

	case reflect.Bool:
		b, ok := tok.(bool)
		if !ok {
			return typeMismatch(tok, rv.Type())
		}
		rv.SetBool(b)
		return nil

	case reflect.String:
		s, ok := tok.(string)
		if !ok {
			return typeMismatch(tok, rv.Type())
		}
		rv.SetString(s)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		num, ok := tok.(json.Number)
		if !ok {
			return typeMismatch(tok, rv.Type())
		}
		n, err := strconv.ParseInt(num.String(), 10, rv.Type().Bits())
		if err != nil {
			return protocolErrf("number %s does not fit %s", num, rv.Type())
		}
		rv.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		num, ok := tok.(json.Number)
		if !ok {
			return typeMismatch(tok, rv.Type())
		}
		n, err := strconv.ParseUint(num.String(), 10, rv.Type().Bits())
		if err != nil {
			return protocolErrf("number %s does not fit %s", num, rv.Type())
		}
		rv.SetUint(n)
		return nil

	case reflect.Float32, reflect.Float64:
		num, ok := tok.(json.Number)
		if !ok {
			return typeMismatch(tok, rv.Type())
		}
		f, err := strconv.ParseFloat(num.String(), rv.Type().Bits())
		if err != nil {
			return protocolErrf("number %s does not fit %s", num, rv.Type())
		}
		rv.SetFloat(f)
		return nil

	case reflect.Slice:
		if tok == nil {
			rv.SetZero()
			return nil
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return typeMismatch(tok, rv.Type())
		}
		out := reflect.MakeSlice(rv.Type(), 0, 4)
		for dec.More() {
			elem := reflect.New(rv.Type().Elem()).Elem()
			if err := decodeNext(dec, elem); err != nil {
				return err
			}
			out = reflect.Append(out, elem)
		}
		if _, err := dec.Token(); err != nil {
			return protocolErrf("unterminated array: %v", err)
		}
		rv.Set(out)
		return nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return protocolErrf("unsupported map key type %s", rv.Type().Key())
		}
		if tok == nil {
			rv.SetZero()
			return nil
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return typeMismatch(tok, rv.Type())
		}
		out := reflect.MakeMap(rv.Type())
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return protocolErrf("truncated object: %v", err)
			}
			key := keyTok.(string)
			kv := reflect.ValueOf(key).Convert(rv.Type().Key())
			if out.MapIndex(kv).IsValid() {
				// First occurrence wins.
				if err := skipValue(dec); err != nil {
					return err
				}
				continue
			}
			elem := reflect.New(rv.Type().Elem()).Elem()
			if err := decodeNext(dec, elem); err != nil {
				return err
			}
			out.SetMapIndex(kv, elem)
		}
		if _, err := dec.Token(); err != nil {
			return protocolErrf("unterminated object: %v", err)
		}
		rv.Set(out)
		return nil

	case reflect.Struct:
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return typeMismatch(tok, rv.Type())
		}
		return decodeStruct(dec, rv)

	case reflect.Interface:
		if rv.Type().NumMethod() != 0 {
			return protocolErrf("unsupported parameter type %s", rv.Type())
		}
		v, err := anyFromToken(dec, tok)
		if err != nil {
			return err
		}
		if v == nil {
			rv.SetZero()
		} else {
			rv.Set(reflect.ValueOf(v))
		}
		return nil

	default:
		return protocolErrf("unsupported parameter type %s", rv.Type())
	}
}

func decodeStruct(dec *json.Decoder, rv reflect.Value) error {
	fields := structFields(rv.Type())
	seen := make(map[int]bool, len(fields))

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return protocolErrf("truncated object: %v", err)
		}
		key := keyTok.(string)

		idx, ok := fields[key]
		if !ok {
			idx, ok = fields[strings.ToLower(key)]
		}
		if !ok {
			return protocolErrf("unknown field %q in %s", key, rv.Type())
		}
		if seen[idx] {
			// Duplicate field: the first occurrence stands.
			if err := skipValue(dec); err != nil {
				return err
			}
			continue
		}
		seen[idx] = true
		if err := decodeNext(dec, rv.Field(idx)); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return protocolErrf("unterminated object: %v", err)
	}
	return nil
}

// structFields maps wire names to field indices: exact json-tag (or field
// name) match first, lower-cased fallback for case-insensitive matching.
func structFields(t reflect.Type) map[string]int {
	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields[name] = i
		if lower := strings.ToLower(name); lower != name {
			if _, taken := fields[lower]; !taken {
				fields[lower] = i
			}
		}
	}
	return fields
}

// anyFromToken builds an untyped Go value for an interface{} target.
// Numbers become float64, matching encoding/json's default mapping.
func anyFromToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, protocolErrf("unrepresentable number %s", t)
		}
		return f, nil
	case json.Delim:
		switch t {
		case '[':
			out := []any{}
			for dec.More() {
				elemTok, err := dec.Token()
				if err != nil {
					return nil, protocolErrf("truncated array: %v", err)
				}
				v, err := anyFromToken(dec, elemTok)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, protocolErrf("unterminated array: %v", err)
			}
			return out, nil
		case '{':
			out := map[string]any{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, protocolErrf("truncated object: %v", err)
				}
				key := keyTok.(string)
				valTok, err := dec.Token()
				if err != nil {
					return nil, protocolErrf("truncated object: %v", err)
				}
				v, err := anyFromToken(dec, valTok)
				if err != nil {
					return nil, err
				}
				if _, dup := out[key]; !dup {
					out[key] = v
				}
			}
			if _, err := dec.Token(); err != nil {
				return nil, protocolErrf("unterminated object: %v", err)
			}
			return out, nil
		}
	}
	return nil, protocolErrf("unexpected token %v", tok)
}

// skipValue consumes exactly one JSON value without materializing it.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return protocolErrf("truncated value: %v", err)
	}
	d, ok := tok.(json.Delim)
	if !ok || (d != '[' && d != '{') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return protocolErrf("truncated value: %v", err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}

func typeMismatch(tok json.Token, want reflect.Type) error {
	switch t := tok.(type) {
	case nil:
		return protocolErrf("null is not a %s", want)
	case json.Delim:
		return protocolErrf("%c is not a %s", t, want)
	default:
		return protocolErrf("%T value is not a %s", tok, want)
	}
}
