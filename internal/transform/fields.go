package transform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field is a canonical catalog attribute
type Field string

const (
	FieldName         Field = "name"
	FieldNameEn       Field = "nameEn"
	FieldPrice        Field = "price"
	FieldYear         Field = "year"
	FieldMileage      Field = "mileage"
	FieldFuel         Field = "fuel"
	FieldTransmission Field = "transmission"
	FieldBodyType     Field = "bodyType"
	FieldBrand        Field = "brand"
	FieldImages       Field = "images"
	FieldPictures     Field = "pictures"
	FieldFeatures     Field = "features"
	FieldFeaturesEn   Field = "featuresEn"
)

// FieldMap maps canonical fields to the provider's column names
type FieldMap map[Field]string

// DefaultFieldMap returns the column layout of the showroom table
func DefaultFieldMap() FieldMap {
	return FieldMap{
		FieldName:         "Model Name",
		FieldNameEn:       "Model Name En",
		FieldPrice:        "售价",
		FieldYear:         "年份",
		FieldMileage:      "里程",
		FieldFuel:         "能源类型",
		FieldTransmission: "变速箱",
		FieldBodyType:     "车型外观",
		FieldBrand:        "品牌/Brand",
		FieldImages:       "image_urls",
		FieldPictures:     "细节组图/Pictures",
		FieldFeatures:     "车辆基本信息/Imformation",
		FieldFeaturesEn:   "Features En",
	}
}

// With returns a copy of m with field remapped to column
func (m FieldMap) With(field Field, column string) FieldMap {
	out := make(FieldMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[field] = column
	return out
}

// Fields is a typed view over one record's cells
type Fields struct {
	columns FieldMap
	cells   map[string]any
}

func newFields(columns FieldMap, cells map[string]any) Fields {
	return Fields{columns: columns, cells: cells}
}

// Value returns the raw cell for field, if the column is mapped and non-null
func (f Fields) Value(field Field) (any, bool) {
	column, ok := f.columns[field]
	if !ok || column == "" {
		return nil, false
	}
	v, ok := f.cells[column]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Text returns the cell as trimmed, non-empty text
func (f Fields) Text(field Field) (string, bool) {
	v, ok := f.Value(field)
	if !ok {
		return "", false
	}
	return textOf(v)
}

// Number returns the cell as a finite number
func (f Fields) Number(field Field) (float64, bool) {
	v, ok := f.Value(field)
	if !ok {
		return 0, false
	}
	return numberOf(v)
}

// textOf flattens the cell shapes the provider emits into one string.
// Rich-text segments concatenate; option lists join with commas.
func textOf(v any) (string, bool) {
	var s string

	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		s = strconv.Itoa(val)
	case json.Number:
		s = val.String()
	case []string:
		s = strings.Join(val, ",")
	case []any:
		var segments, options []string
		for _, item := range val {
			switch it := item.(type) {
			case map[string]any:
				if text, ok := segmentText(it); ok {
					segments = append(segments, text)
				}
			default:
				if text, ok := textOf(it); ok {
					options = append(options, text)
				}
			}
		}
		s = strings.Join(segments, "") + strings.Join(options, ",")
	case map[string]any:
		text, ok := segmentText(val)
		if !ok {
			return "", false
		}
		s = text
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

func segmentText(m map[string]any) (string, bool) {
	for _, key := range []string{"text", "name", "value"} {
		if v, ok := m[key]; ok && v != nil {
			if key == "value" {
				return textOf(v)
			}
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func numberOf(v any) (float64, bool) {
	var n float64

	switch val := v.(type) {
	case float64:
		n = val
	case int:
		n = float64(val)
	case int64:
		n = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		n = parsed
	case map[string]any:
		if inner, ok := val["value"]; ok {
			return numberOf(inner)
		}
		text, ok := segmentText(val)
		if !ok {
			return 0, false
		}
		return numberOf(text)
	case []any:
		if len(val) == 1 {
			return numberOf(val[0])
		}
		text, ok := textOf(val)
		if !ok {
			return 0, false
		}
		return numberOf(text)
	case string:
		clean := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		if clean == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
