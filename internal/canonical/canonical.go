// Package canonical produce la serialización determinista usada para firmar
// payloads y para hashear aliases.
//
// La salida es JSON sin espacios, con los miembros de cada objeto ordenados
// lexicográficamente a cualquier profundidad. Los arrays conservan su orden.
package canonical

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"unicode/utf16"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ErrInvalidUTF8 indica un string que no es UTF-8 válido. encoding/json lo
// reemplazaría por U+FFFD y dos entradas distintas darían la misma salida.
var ErrInvalidUTF8 = errors.New("canonical: invalid UTF-8 in string")

// Canonicalize serializa v de forma canónica.
//
// Acepta mensajes protobuf (vía protojson), json.RawMessage (JSON ya codificado)
// y cualquier valor que encoding/json sepa codificar.
func Canonicalize(v any) ([]byte, error) {
	raw, err := toJSON(v)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

// Normalize re-emite un documento JSON en forma canónica.
func Normalize(raw []byte) ([]byte, error) {
	if !utf8.Valid(raw) {
		return nil, ErrInvalidUTF8
	}
	if err := checkEscapes(raw); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("canonical: trailing data after JSON value")
	}

	// encoding/json ordena las claves de map[string]any; json.Number se emite
	// tal como vino, así que los números no cambian de representación.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("canonical: encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func toJSON(v any) ([]byte, error) {
	switch m := v.(type) {
	case nil:
		return nil, errors.New("canonical: nil message")
	case proto.Message:
		b, err := protojson.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("canonical: protojson: %w", err)
		}
		return b, nil
	case json.RawMessage:
		return m, nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("canonical: marshal: %w", err)
		}
		// Encode ya rechazó ciclos, así que el recorrido termina.
		if err := checkStrings(reflect.ValueOf(v)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// checkStrings recorre lo que encoding/json va a serializar y falla ante el primer
// string que no sea UTF-8. Los tipos con su propio marshaler se validan después, sobre el JSON.
func checkStrings(v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) ||
		reflect.PointerTo(t).Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return nil
	}
	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return ErrInvalidUTF8
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return checkStrings(v.Elem())
		}
	case reflect.Struct:
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() || f.Anonymous {
				if err := checkStrings(v.Field(i)); err != nil {
					return err
				}
			}
		}
	case reflect.Map:
		it := v.MapRange()
		for it.Next() {
			if err := checkStrings(it.Key()); err != nil {
				return err
			}
			if err := checkStrings(it.Value()); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil // []byte va en base64
		}
		for i := range v.Len() {
			if err := checkStrings(v.Index(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkEscapes rechaza escapes \u de surrogates sueltos: el decoder los convierte en U+FFFD.
func checkEscapes(raw []byte) error {
	inString := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			continue
		}
		switch c {
		case '"':
			inString = false
		case '\\':
			if i+1 >= len(raw) || raw[i+1] != 'u' {
				i++
				continue
			}
			r, ok := hex4(raw, i+2)
			if !ok || !utf16.IsSurrogate(r) {
				i += 5
				continue
			}
			if r < 0xDC00 && i+7 < len(raw) && raw[i+6] == '\\' && raw[i+7] == 'u' {
				if lo, ok := hex4(raw, i+8); ok && lo >= 0xDC00 && lo <= 0xDFFF {
					i += 11
					continue
				}
			}
			return fmt.Errorf("%w: unpaired surrogate escape", ErrInvalidUTF8)
		}
	}
	return nil
}

func hex4(b []byte, at int) (rune, bool) {
	if at+4 > len(b) {
		return 0, false
	}
	var r rune
	for _, c := range b[at : at+4] {
		switch {
		case '0' <= c && c <= '9':
			c -= '0'
		case 'a' <= c && c <= 'f':
			c = c - 'a' + 10
		case 'A' <= c && c <= 'F':
			c = c - 'A' + 10
		default:
			return 0, false
		}
		r = r<<4 | rune(c)
	}
	return r, true
}
