package transform

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"car-showroom/internal/domain"
)

// resolver produces a candidate value for one field, or reports that it has
// nothing to offer.
type resolver[T any] func(*recordView) (T, bool)

// firstOf runs resolvers in order and returns the first value offered,
// or fallback when none apply.
func firstOf[T any](rv *recordView, fallback T, resolvers ...resolver[T]) T {
	for _, r := range resolvers {
		if v, ok := r(rv); ok {
			return v
		}
	}
	return fallback
}

// recordView is the per-record state shared by the resolvers
type recordView struct {
	record domain.RawRecord
	fields Fields

	haystack    string
	haystackSet bool
}

func newRecordView(record domain.RawRecord, columns FieldMap) *recordView {
	return &recordView{
		record: record,
		fields: newFields(columns, record.Fields),
	}
}

// searchText is the record serialization followed by the free-text feature
// blob. Derived extraction scans it.
func (rv *recordView) searchText() string {
	if rv.haystackSet {
		return rv.haystack
	}

	raw := rv.record.RawFields()
	if bytes.Contains(raw, []byte(`\u`)) {
		// provider escaped non-ASCII text; decode it in place so keywords match
		if unescaped, err := unescapeOrdered(raw); err == nil {
			raw = unescaped
		}
	}

	var b strings.Builder
	b.Write(raw)
	if v, ok := rv.fields.Value(FieldFeatures); ok {
		if blob, isText := v.(string); isText {
			b.WriteString(blob)
		}
	}

	rv.haystack = b.String()
	rv.haystackSet = true
	return rv.haystack
}

// unescapeOrdered rewrites a JSON document token by token with string
// escapes decoded, keeping keys in their original order.
func unescapeOrdered(raw []byte) ([]byte, error) {
	type frame struct {
		object bool
		count  int
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)

	var stack []frame
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			stack = stack[:len(stack)-1]
			out.WriteByte(byte(d))
			continue
		}

		if n := len(stack); n > 0 {
			top := &stack[n-1]
			switch {
			case top.object && top.count%2 == 1:
				out.WriteByte(':')
			case top.count > 0:
				out.WriteByte(',')
			}
			top.count++
		}

		switch v := tok.(type) {
		case json.Delim:
			out.WriteByte(byte(v))
			stack = append(stack, frame{object: v == '{'})
		case string:
			if err := enc.Encode(v); err != nil {
				return nil, err
			}
			out.Truncate(out.Len() - 1) // Encode appends a newline
		case json.Number:
			out.WriteString(v.String())
		case bool:
			out.WriteString(strconv.FormatBool(v))
		case nil:
			out.WriteString("null")
		}
	}
	return out.Bytes(), nil
}

// directText reads a mapped column as trimmed text
func directText(field Field) resolver[string] {
	return func(rv *recordView) (string, bool) {
		return rv.fields.Text(field)
	}
}

// directPositive reads a mapped column as a positive number
func directPositive(field Field) resolver[float64] {
	return func(rv *recordView) (float64, bool) {
		n, ok := rv.fields.Number(field)
		if !ok || n <= 0 {
			return 0, false
		}
		return n, true
	}
}

var (
	modelYearPattern = regexp.MustCompile(`(\d{4})款`)
	mileagePattern   = regexp.MustCompile(`(\d+(\.\d+)?)万公里`)
)

func directYear(rv *recordView) (int, bool) {
	n, ok := directPositive(FieldYear)(rv)
	if !ok || n > 9999 {
		return 0, false
	}
	return int(n), true
}

// modelYearFromText takes the first "<yyyy>款" mention
func modelYearFromText(rv *recordView) (int, bool) {
	m := modelYearPattern.FindStringSubmatch(rv.searchText())
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year == 0 {
		return 0, false
	}
	return year, true
}

// mileageFromText takes the first "<n>万公里" mention, in kilometres
func mileageFromText(rv *recordView) (float64, bool) {
	m := mileagePattern.FindStringSubmatch(rv.searchText())
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return math.Round(n * 10000), true
}

const (
	FuelGasoline = "汽油"
	FuelElectric = "纯电动"
	FuelPHEV     = "插电混动"
)

// fuelFromKeywords checks electric before plug-in hybrid
func fuelFromKeywords(rv *recordView) (string, bool) {
	text := rv.searchText()
	switch {
	case strings.Contains(text, "纯电"):
		return FuelElectric, true
	case strings.Contains(text, "插电"), strings.Contains(text, "混动"):
		return FuelPHEV, true
	}
	return "", false
}

var bodyTypeKeywords = []string{"SUV", "轿车", "跑车", "MPV"}

func bodyTypeFromKeywords(rv *recordView) (string, bool) {
	text := rv.searchText()
	for _, keyword := range bodyTypeKeywords {
		if strings.Contains(text, keyword) {
			return keyword, true
		}
	}
	return "", false
}

func imagesFrom(field Field, proxyPath string) resolver[[]string] {
	return func(rv *recordView) ([]string, bool) {
		v, ok := rv.fields.Value(field)
		if !ok {
			return nil, false
		}
		cell := classifyImageCell(v)
		if cell == nil {
			return nil, false
		}
		urls := cell.urls(proxyPath)
		return urls, len(urls) > 0
	}
}
