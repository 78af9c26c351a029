package domain

// Car represents one vehicle in the showroom catalog
type Car struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	NameEn         string   `json:"nameEn,omitempty"`
	Price          float64  `json:"price"`
	PriceDisplay   string   `json:"priceDisplay"`
	Year           int      `json:"year"`
	Mileage        float64  `json:"mileage"`
	MileageDisplay string   `json:"mileageDisplay"`
	Fuel           string   `json:"fuel"`
	Transmission   string   `json:"transmission"`
	BodyType       string   `json:"bodyType"`
	Brand          string   `json:"brand"`
	Images         []string `json:"images"`
	Features       []string `json:"features"`
	FeaturesEn     []string `json:"featuresEn,omitempty"`
}

// SortKey selects the ordering applied by the catalog query
type SortKey string

const (
	SortPriceAsc   SortKey = "price-asc"
	SortPriceDesc  SortKey = "price-desc"
	SortYearDesc   SortKey = "year-desc"
	SortMileageAsc SortKey = "mileage-asc"
)

// Valid reports whether k is one of the known sort keys
func (k SortKey) Valid() bool {
	switch k {
	case SortPriceAsc, SortPriceDesc, SortYearDesc, SortMileageAsc:
		return true
	}
	return false
}

// FilterState is the catalog filter selection. Empty fields mean no filter.
type FilterState struct {
	Keyword  string  `json:"keyword"`
	Brand    string  `json:"brand"`
	BodyType string  `json:"bodyType"`
	Fuel     string  `json:"fuel"`
	SortBy   SortKey `json:"sortBy"`
}

// DefaultFilterState returns the initial selection shown to a visitor
func DefaultFilterState() FilterState {
	return FilterState{SortBy: SortPriceDesc}
}
