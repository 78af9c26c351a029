package catalog

import (
	"reflect"

	"car-showroom/internal/domain"
)

var reflectCarType = reflect.TypeOf(domain.Car{})
