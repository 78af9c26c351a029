// Package render draws catalog views for the terminal.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"car-showroom/internal/catalog"
	"car-showroom/internal/domain"
	"car-showroom/internal/i18n"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	priceStyle  = cellStyle.Foreground(lipgloss.Color("208"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const priceColumn = 3

var headers = map[i18n.Locale][]string{
	i18n.LocaleZH: {"车型", "品牌", "年份", "价格", "里程", "燃料", "变速箱", "车身"},
	i18n.LocaleEN: {"Model", "Brand", "Year", "Price", "Mileage", "Fuel", "Transmission", "Body"},
}

// Table renders one row per car with attributes shown in locale
func Table(items []domain.Car, locale i18n.Locale) string {
	rows := make([][]string, 0, len(items))
	for _, car := range items {
		rows = append(rows, Row(car, locale))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headersFor(locale)...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == priceColumn:
				return priceStyle
			default:
				return cellStyle
			}
		})

	return t.String()
}

// Row is the cell text of one car
func Row(car domain.Car, locale i18n.Locale) []string {
	name := car.Name
	if locale.IsSecondary() && car.NameEn != "" {
		name = car.NameEn
	}

	year := "-"
	if car.Year > 0 {
		year = strconv.Itoa(car.Year)
	}

	return []string{
		name,
		car.Brand,
		year,
		i18n.FormatPrice(car.Price),
		i18n.FormatDistance(car.Mileage, locale),
		i18n.Translate(car.Fuel, locale),
		i18n.Translate(car.Transmission, locale),
		i18n.Translate(car.BodyType, locale),
	}
}

func headersFor(locale i18n.Locale) []string {
	if h, ok := headers[locale]; ok {
		return h
	}
	return headers[i18n.LocaleZH]
}

var facetLabels = map[i18n.Locale][4]string{
	i18n.LocaleZH: {"共 %d 辆", "品牌", "车身", "燃料"},
	i18n.LocaleEN: {"%d cars", "Brands", "Body types", "Fuels"},
}

// Facets renders the result count and the facet lists of view
func Facets(view catalog.View, locale i18n.Locale) string {
	labels, ok := facetLabels[locale]
	if !ok {
		labels = facetLabels[i18n.LocaleZH]
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf(labels[0], view.Total)))
	b.WriteByte('\n')

	line := func(label string, values []string) {
		b.WriteString(labelStyle.Render(label + ":"))
		b.WriteByte(' ')
		b.WriteString(strings.Join(values, ", "))
		b.WriteByte('\n')
	}
	line(labels[1], view.Facets.Brands)
	line(labels[2], i18n.TranslateAll(view.Facets.BodyTypes, locale))
	line(labels[3], i18n.TranslateAll(view.Facets.Fuels, locale))

	if view.Err != "" {
		b.WriteString(errorStyle.Render(view.Err))
		b.WriteByte('\n')
	}
	return b.String()
}
