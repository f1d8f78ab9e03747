// Package bencode implements a byte-exact bencoding codec: decode bytes
// into a Value tree, and encode a Value tree back into bytes such that
// encode(decode(b)) == b for any conforming input, and decode(encode(v)) == v
// for any Value produced by Decode.
//
// Dictionary keys are always emitted in ascending byte order on encode,
// which is what lets the info-dict digest match any other client's
// computation. Decode additionally records the exact byte range each value
// occupied in the source buffer (Value.Raw), so callers that need a
// byte-exact hash of a sub-value (the metainfo "info" dict, in particular)
// never have to trust a re-encode to reproduce the original bytes.
package bencode

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/markhalden/bitlet/errs"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	String Kind = iota
	Int
	List
	Dict
)

// Value is a tagged union of the four bencode types. Dict keys are byte
// strings rather than Go strings turned into map keys by convention only;
// nothing stops a key from containing non-UTF-8 bytes, which is why Str
// fields throughout this package are []byte, never string.
type Value struct {
	Kind Kind

	Str  []byte
	Int  int64
	List []*Value
	Dict map[string]*Value

	// Raw is the exact slice of the input buffer this value was decoded
	// from, including its own type/length prefix. It is nil for values
	// constructed directly (NewString, NewInt, ...) rather than decoded.
	Raw []byte
}

func NewString(b []byte) *Value  { return &Value{Kind: String, Str: b} }
func NewInt(i int64) *Value      { return &Value{Kind: Int, Int: i} }
func NewList(v ...*Value) *Value { return &Value{Kind: List, List: v} }
func NewDict() *Value            { return &Value{Kind: Dict, Dict: map[string]*Value{}} }

// Get looks up key in a Dict value. It returns (nil, false) if v is not a
// Dict or the key is absent.
func (v *Value) Get(key string) (*Value, bool) {
	if v == nil || v.Kind != Dict {
		return nil, false
	}
	child, ok := v.Dict[key]
	return child, ok
}

// GetString is Get plus a String-kind assertion.
func (v *Value) GetString(key string) ([]byte, bool) {
	child, ok := v.Get(key)
	if !ok || child.Kind != String {
		return nil, false
	}
	return child.Str, true
}

// GetInt is Get plus an Int-kind assertion.
func (v *Value) GetInt(key string) (int64, bool) {
	child, ok := v.Get(key)
	if !ok || child.Kind != Int {
		return 0, false
	}
	return child.Int, true
}

// Decode parses exactly one bencode value from data and requires that the
// entire buffer be consumed; trailing bytes after the top-level value are a
// MalformedBencode error.
func Decode(data []byte) (*Value, error) {
	d := &decoder{data: data}
	v, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, malformed("trailing data after top-level value")
	}
	return v, nil
}

type decoder struct {
	data []byte
	pos  int
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrMalformedBencode}, args...)...)
}

func (d *decoder) peek() (byte, bool) {
	if d.pos >= len(d.data) {
		return 0, false
	}
	return d.data[d.pos], true
}

func (d *decoder) decodeValue() (*Value, error) {
	b, ok := d.peek()
	if !ok {
		return nil, malformed("unexpected end of input")
	}
	start := d.pos

	var v *Value
	var err error
	switch {
	case b == 'i':
		v, err = d.decodeInt()
	case b == 'l':
		v, err = d.decodeList()
	case b == 'd':
		v, err = d.decodeDict()
	case b >= '0' && b <= '9':
		v, err = d.decodeString()
	case b == '-':
		return nil, malformed("negative string length")
	default:
		return nil, malformed("unknown type byte %q", b)
	}
	if err != nil {
		return nil, err
	}
	v.Raw = d.data[start:d.pos]
	return v, nil
}

func (d *decoder) decodeInt() (*Value, error) {
	d.pos++ // consume 'i'
	start := d.pos
	for {
		b, ok := d.peek()
		if !ok {
			return nil, malformed("unexpected end of input in integer")
		}
		if b == 'e' {
			break
		}
		d.pos++
	}
	digits := d.data[start:d.pos]
	d.pos++ // consume 'e'

	if len(digits) == 0 {
		return nil, malformed("empty integer")
	}
	neg := digits[0] == '-'
	mantissa := digits
	if neg {
		mantissa = digits[1:]
	}
	if len(mantissa) == 0 {
		return nil, malformed("malformed integer %q", digits)
	}
	for _, c := range mantissa {
		if c < '0' || c > '9' {
			return nil, malformed("non-digit in integer %q", digits)
		}
	}
	if len(mantissa) > 1 && mantissa[0] == '0' {
		return nil, malformed("leading zero in integer %q", digits)
	}
	if neg && mantissa[0] == '0' {
		return nil, malformed("negative zero integer %q", digits)
	}
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return nil, malformed("integer out of range %q", digits)
	}
	return &Value{Kind: Int, Int: n}, nil
}

func (d *decoder) decodeString() (*Value, error) {
	start := d.pos
	for {
		b, ok := d.peek()
		if !ok {
			return nil, malformed("unexpected end of input in string length")
		}
		if b == ':' {
			break
		}
		if b < '0' || b > '9' {
			return nil, malformed("non-digit in string length")
		}
		d.pos++
	}
	lengthStr := d.data[start:d.pos]
	d.pos++ // consume ':'

	length, err := strconv.Atoi(string(lengthStr))
	if err != nil {
		return nil, malformed("malformed string length %q", lengthStr)
	}
	if d.pos+length > len(d.data) {
		return nil, malformed("unexpected end of input in string body")
	}
	str := make([]byte, length)
	copy(str, d.data[d.pos:d.pos+length])
	d.pos += length
	return &Value{Kind: String, Str: str}, nil
}

func (d *decoder) decodeList() (*Value, error) {
	d.pos++ // consume 'l'
	items := make([]*Value, 0)
	for {
		b, ok := d.peek()
		if !ok {
			return nil, malformed("unexpected end of input in list")
		}
		if b == 'e' {
			d.pos++
			break
		}
		item, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &Value{Kind: List, List: items}, nil
}

func (d *decoder) decodeDict() (*Value, error) {
	d.pos++ // consume 'd'
	dict := make(map[string]*Value)
	for {
		b, ok := d.peek()
		if !ok {
			return nil, malformed("unexpected end of input in dict")
		}
		if b == 'e' {
			d.pos++
			break
		}
		keyVal, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		if keyVal.Kind != String {
			return nil, malformed("dict key of non-string type")
		}
		key := string(keyVal.Str)
		if _, dup := dict[key]; dup {
			return nil, malformed("duplicate dict key %q", key)
		}
		val, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		dict[key] = val
	}
	return &Value{Kind: Dict, Dict: dict}, nil
}

// Encode renders v back into its canonical bencoded form: integers with no
// leading zeros, byte strings length-prefixed verbatim, and dict keys in
// strict ascending byte order regardless of the order Decode saw them in.
func Encode(v *Value) []byte {
	buf := &bytes.Buffer{}
	encodeValue(buf, v)
	return buf.Bytes()
}

func encodeValue(buf *bytes.Buffer, v *Value) {
	switch v.Kind {
	case String:
		buf.WriteString(strconv.Itoa(len(v.Str)))
		buf.WriteByte(':')
		buf.Write(v.Str)
	case Int:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(v.Int, 10))
		buf.WriteByte('e')
	case List:
		buf.WriteByte('l')
		for _, item := range v.List {
			encodeValue(buf, item)
		}
		buf.WriteByte('e')
	case Dict:
		buf.WriteByte('d')
		keys := make([]string, 0, len(v.Dict))
		for k := range v.Dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			encodeValue(buf, NewString([]byte(k)))
			encodeValue(buf, v.Dict[k])
		}
		buf.WriteByte('e')
	}
}

// ToNative converts a Value into plain Go values (string, int64,
// []interface{}, map[string]interface{}) suitable for json.Marshal. Byte
// strings are converted with string(), which is lossy for non-UTF-8
// payloads but matches how every bencode-to-JSON CLI in this ecosystem
// renders the "decode" command's output.
func ToNative(v *Value) any {
	switch v.Kind {
	case String:
		return string(v.Str)
	case Int:
		return v.Int
	case List:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = ToNative(item)
		}
		return out
	case Dict:
		out := make(map[string]any, len(v.Dict))
		for k, item := range v.Dict {
			out[k] = ToNative(item)
		}
		return out
	default:
		return nil
	}
}
