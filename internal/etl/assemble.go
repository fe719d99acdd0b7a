package etl

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Row is one output line: serialized values in declaration order.
type Row []string

// Assembler orders the values of a tuple by declaration index and serializes
// them. Text encoding is the sink's concern; values here are plain Go strings.
type Assembler struct {
	table     *PathTable
	nullValue string
}

// NewAssembler returns an assembler writing nullValue for null and missing
// fields.
func NewAssembler(table *PathTable, nullValue string) *Assembler {
	return &Assembler{table: table, nullValue: nullValue}
}

// Assemble builds the row for one tuple. Columns the tuple does not cover
// are filled with the null placeholder; values for undeclared paths are
// ignored.
func (a *Assembler) Assemble(t Tuple) Row {
	row := make(Row, a.table.Len())
	for i := range row {
		row[i] = a.nullValue
	}
	for _, fv := range t {
		idx, ok := a.table.Index(fv.Path)
		if !ok {
			continue
		}
		row[idx] = a.Format(fv)
	}
	return row
}

// Format serializes a single field value.
func (a *Assembler) Format(fv FieldValue) string {
	if fv.Missing {
		return a.nullValue
	}
	return FormatValue(fv.Value, a.nullValue)
}

// ── Serialization ──────────────────────────────────────────

// DateTimeLayout is the text form of date-time values. Microseconds are
// appended only when the value has a sub-second part.
const DateTimeLayout = "2006-01-02 15:04:05"

// FormatValue serializes v, using nullValue for null scalars. Maps and
// sequences found on a requested leaf are rendered as relaxed Extended JSON.
func FormatValue(v Value, nullValue string) string {
	switch v.Kind() {
	case KindMap:
		return extJSON(v.Map().BSON())
	case KindSequence:
		return extJSONArray(v.BSON().(bson.A))
	default:
		return FormatScalar(v.Scalar(), nullValue)
	}
}

// FormatScalar serializes a leaf value.
func FormatScalar(v any, nullValue string) string {
	switch t := v.(type) {
	case nil, bson.Null, bson.Undefined:
		return nullValue
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return FormatFloat(float64(t))
	case float64:
		return FormatFloat(t)
	case json.Number:
		return t.String()
	case time.Time:
		return FormatTime(t)
	case bson.DateTime:
		return FormatTime(t.Time())
	case bson.ObjectID:
		return t.Hex()
	case bson.Decimal128:
		return t.String()
	case bson.Timestamp:
		return fmt.Sprintf("Timestamp(%d, %d)", t.T, t.I)
	case bson.Binary:
		return base64.StdEncoding.EncodeToString(t.Data)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case bson.Regex:
		return "/" + t.Pattern + "/" + t.Options
	case bson.JavaScript:
		return string(t)
	case bson.Symbol:
		return string(t)
	case bson.MinKey:
		return "MinKey"
	case bson.MaxKey:
		return "MaxKey"
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// FormatTime renders t in UTC as "YYYY-MM-DD HH:MM:SS[.ffffff]".
func FormatTime(t time.Time) string {
	t = t.UTC()
	s := t.Format(DateTimeLayout)
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// FormatFloat renders f in its shortest round-trip form: positional notation
// for 1e-4 <= |f| < 1e16 (integral values keep a ".0"), exponent otherwise.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-4 && abs < 1e16) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}

// extJSON renders a document as relaxed Extended JSON.
func extJSON(d bson.D) string {
	b, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return fmt.Sprint(d)
	}
	return string(b)
}

// extJSONArray renders a sequence as relaxed Extended JSON. Extended JSON
// only marshals documents, so the array is wrapped and unwrapped again.
func extJSONArray(a bson.A) string {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: a}}, false, false)
	if err != nil {
		return fmt.Sprint(a)
	}
	var wrapped struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return fmt.Sprint(a)
	}
	return string(wrapped.V)
}
