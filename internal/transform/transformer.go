// Package transform converts loosely typed bitable records into catalog cars.
package transform

import (
	"strings"
	"time"

	"car-showroom/internal/domain"
	"car-showroom/internal/i18n"

	"github.com/google/uuid"
)

const (
	DefaultName         = "未命名车辆"
	DefaultBrand        = "其他品牌"
	DefaultFuel         = FuelGasoline
	DefaultTransmission = "自动挡"
	DefaultBodyType     = "轿车"

	PlaceholderImage = "https://images.unsplash.com/photo-1533473359331-0135ef1b58bf?auto=format&fit=crop&q=80&w=1000"

	DefaultImageProxyPath = "/api/image"
)

// recordNamespace seeds ids for records that arrive without one
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("car-showroom/bitable-record"))

// Transformer builds display-ready cars from raw records
type Transformer struct {
	columns        FieldMap
	imageProxyPath string
	placeholder    string
	now            func() time.Time
}

// Option configures a Transformer
type Option func(*Transformer)

// WithFieldMap overrides the column layout
func WithFieldMap(columns FieldMap) Option {
	return func(t *Transformer) { t.columns = columns }
}

// WithClock sets the time source used for the default model year
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

// WithImageProxyPath sets the endpoint attachment URLs are routed through.
// An empty path leaves attachment URLs untouched.
func WithImageProxyPath(path string) Option {
	return func(t *Transformer) { t.imageProxyPath = path }
}

// WithPlaceholderImage sets the image used when a record has none
func WithPlaceholderImage(u string) Option {
	return func(t *Transformer) { t.placeholder = u }
}

// New creates a Transformer with the showroom defaults
func New(opts ...Option) *Transformer {
	t := &Transformer{
		columns:        DefaultFieldMap(),
		imageProxyPath: DefaultImageProxyPath,
		placeholder:    PlaceholderImage,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform converts one record. It always returns a complete car: any
// missing or malformed cell is replaced by its default.
func (t *Transformer) Transform(record domain.RawRecord) (car domain.Car) {
	id := recordID(record)

	defer func() {
		if r := recover(); r != nil {
			car = t.fallbackCar(id)
		}
	}()

	rv := newRecordView(record, t.columns)

	price := firstOf(rv, 0, directPositive(FieldPrice))
	mileage := firstOf(rv, 0, directPositive(FieldMileage), mileageFromText)
	year := firstOf(rv, t.now().Year(), directYear, modelYearFromText)

	images := firstOf(rv, []string{t.placeholder},
		imagesFrom(FieldImages, t.imageProxyPath),
		imagesFrom(FieldPictures, t.imageProxyPath),
	)

	featuresCell, _ := rv.fields.Value(FieldFeatures)
	featuresEnCell, _ := rv.fields.Value(FieldFeaturesEn)

	car = domain.Car{
		ID:             id,
		Name:           firstOf(rv, DefaultName, directText(FieldName)),
		NameEn:         firstOf(rv, "", directText(FieldNameEn)),
		Price:          price,
		PriceDisplay:   i18n.FormatPrice(price),
		Year:           year,
		Mileage:        mileage,
		MileageDisplay: i18n.FormatDistance(mileage, i18n.LocaleZH),
		Fuel:           firstOf(rv, DefaultFuel, directText(FieldFuel), fuelFromKeywords),
		Transmission:   firstOf(rv, DefaultTransmission, directText(FieldTransmission)),
		BodyType:       firstOf(rv, DefaultBodyType, directText(FieldBodyType), bodyTypeFromKeywords),
		Brand:          firstOf(rv, DefaultBrand, directText(FieldBrand)),
		Images:         images,
		Features:       parseFeatures(featuresCell),
		FeaturesEn:     parseFeatures(featuresEnCell),
	}
	if len(car.FeaturesEn) == 0 {
		car.FeaturesEn = nil
	}

	return car
}

// TransformAll converts records preserving their order
func (t *Transformer) TransformAll(records []domain.RawRecord) []domain.Car {
	cars := make([]domain.Car, 0, len(records))
	for _, record := range records {
		cars = append(cars, t.Transform(record))
	}
	return cars
}

func (t *Transformer) fallbackCar(id string) domain.Car {
	return domain.Car{
		ID:             id,
		Name:           DefaultName,
		PriceDisplay:   i18n.FormatPrice(0),
		Year:           t.now().Year(),
		MileageDisplay: i18n.FormatDistance(0, i18n.LocaleZH),
		Fuel:           DefaultFuel,
		Transmission:   DefaultTransmission,
		BodyType:       DefaultBodyType,
		Brand:          DefaultBrand,
		Images:         []string{t.placeholder},
		Features:       []string{},
	}
}

func recordID(record domain.RawRecord) string {
	if id := strings.TrimSpace(record.RecordID); id != "" {
		return id
	}
	return uuid.NewSHA1(recordNamespace, record.RawFields()).String()
}
