package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "missing"
	}
}

// MissingLabel is how a missing cell is rendered and written.
const MissingLabel = "NA"

// Value is a single table cell: a number, a string, or the missing marker.
// The zero Value is missing.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Missing returns the missing marker.
func Missing() Value { return Value{} }

// Num wraps a number. NaN is stored as missing so it never leaks into sums,
// and negative zero is stored as zero.
func Num(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	if f == 0 {
		f = 0
	}
	return Value{kind: KindNumber, num: f}
}

// Str wraps a string verbatim.
func Str(s string) Value { return Value{kind: KindString, str: s} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsString() bool  { return v.kind == KindString }

// Float returns the numeric payload; ok is false for strings and missing.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text returns the string payload; ok is false for numbers and missing.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// String renders the value for display and CSV output.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return MissingLabel
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	default:
		return true
	}
}

// Compare orders values: missing sorts last, numbers before strings,
// numbers numerically and strings lexically.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		rank := func(k Kind) int {
			switch k {
			case KindNumber:
				return 0
			case KindString:
				return 1
			default:
				return 2
			}
		}
		if rank(a.kind) < rank(b.kind) {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case KindString:
		return strings.Compare(a.str, b.str)
	default:
		return 0
	}
}

// key encodes the value so that equal values, and only equal values, share a key.
func (v Value) key() string {
	switch v.kind {
	case KindNumber:
		return "n" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return "s" + strconv.Itoa(len(v.str)) + ":" + v.str
	default:
		return "m"
	}
}

// TupleKey encodes a tuple of values into a map key.
func TupleKey(vals []Value) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(v.key())
	}
	return b.String()
}

// ParseOptions controls how raw text cells become Values.
type ParseOptions struct {
	// MissingTokens are exact cell texts treated as missing. The empty
	// string is always missing.
	MissingTokens []string
	// DecimalSeparator and ThousandsSeparator enable locale-aware number
	// parsing. When both are 0 numbers must be plain Go float syntax.
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// DefaultParseOptions treats "" and "NA" as missing.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{MissingTokens: []string{MissingLabel}}
}

// IsMissingToken reports whether raw text denotes a missing cell.
func (o ParseOptions) IsMissingToken(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	for _, tok := range o.MissingTokens {
		if s == tok {
			return true
		}
	}
	return false
}

// ParseNumber parses raw text as a number under the options.
func (o ParseOptions) ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\u00A0", " "))
	if s == "" {
		return 0, false
	}
	dec, thou := o.DecimalSeparator, o.ThousandsSeparator
	if dec != 0 || thou != 0 {
		if dec == 0 {
			dec = '.'
		}
		if thou != 0 && thou != dec {
			s = strings.ReplaceAll(s, string(thou), "")
		}
		if dec != '.' {
			s = strings.ReplaceAll(s, string(dec), ".")
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// InferColumn converts raw cells into Values. The column becomes numeric when
// every non-missing cell parses as a number; otherwise cells stay verbatim strings.
func InferColumn(raw []string, opt ParseOptions) []Value {
	out := make([]Value, len(raw))
	numeric := true
	nums := make([]float64, len(raw))
	seen := 0
	for i, s := range raw {
		if opt.IsMissingToken(s) {
			continue
		}
		seen++
		f, ok := opt.ParseNumber(s)
		if !ok {
			numeric = false
			break
		}
		nums[i] = f
	}
	for i, s := range raw {
		switch {
		case opt.IsMissingToken(s):
			out[i] = Missing()
		case numeric && seen > 0:
			out[i] = Num(nums[i])
		default:
			out[i] = Str(s)
		}
	}
	return out
}

// StringColumn converts raw cells into string Values, honouring missing tokens.
func StringColumn(raw []string, opt ParseOptions) []Value {
	out := make([]Value, len(raw))
	for i, s := range raw {
		if opt.IsMissingToken(s) {
			out[i] = Missing()
			continue
		}
		out[i] = Str(s)
	}
	return out
}
