package entity

import (
	"fmt"
	"strconv"

	"github.com/sweldo/sweldo-sync/internal/schema"
	"github.com/sweldo/sweldo-sync/internal/transform"
)

// Employee holds one profile document per employee.
var Employee = register(&Codec{
	Name:         "employee",
	Collection:   "employees",
	Area:         "employees",
	RecordsField: "profile",
	Grouping:     Single,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "name", Kind: String, Default: ""},
		{Name: "position", Kind: String, Default: ""},
		{Name: "dailyRate", Kind: Money, Default: 0.0},
		{Name: "sss", Kind: String, Default: ""},
		{Name: "philHealth", Kind: String, Default: ""},
		{Name: "pagIbig", Kind: String, Default: ""},
		{Name: "tin", Kind: String, Default: ""},
		{Name: "employmentType", Kind: String, Default: "regular"},
		{Name: "status", Kind: String, Default: "active"},
		{Name: "startDate", Kind: Date, Default: nil},
		{Name: "lastPaymentPeriod", Kind: Any, Default: nil},
	},
	LegacyColumns: []string{
		"id", "name", "position", "dailyRate", "sss", "philHealth",
		"pagIbig", "tin", "employmentType", "status", "startDate", "lastPaymentPeriod",
	},
	LegacyName:    "employees",
	KeyColumn:     "id",
	SubjectColumn: "id",
})

// Holiday holds holidays, one document per calendar year.
var Holiday = register(&Codec{
	Name:         "holiday",
	Collection:   "holidays",
	Area:         "holidays",
	RecordsField: "holidays",
	Grouping:     Single,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "name", Kind: String, Default: ""},
		{Name: "startDate", Kind: Date, Default: nil},
		{Name: "endDate", Kind: Date, Default: nil},
		{Name: "type", Kind: String, Default: "Regular"},
		{Name: "multiplier", Kind: Number, Default: 1.0},
	},
	PeriodField:   "startDate",
	LegacyColumns: []string{"id", "name", "startDate", "endDate", "type", "multiplier"},
	LegacyName:    "holidays",
	KeyColumn:     "id",
	IDField:       "id",
	SubjectOf:     holidayYear,
})

func holidayYear(p schema.Payload, key string) (string, error) {
	s, _ := p["startDate"].(string)
	tm, ok := transform.ParseDate(s)
	if !ok {
		return "", fmt.Errorf("holiday %s: invalid startDate %q", key, s)
	}
	return strconv.Itoa(tm.Year()), nil
}

// Role holds access roles.
var Role = register(&Codec{
	Name:         "role",
	Collection:   "roles",
	Area:         "roles",
	RecordsField: "roles",
	Grouping:     Single,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "name", Kind: String, Default: ""},
		{Name: "description", Kind: String, Default: ""},
		{Name: "pinCode", Kind: String, Default: ""},
		{Name: "permissions", Kind: Any, Default: nil},
		{Name: "createdAt", Kind: DateTime, Default: nil},
		{Name: "updatedAt", Kind: DateTime, Default: nil},
	},
	LegacyColumns: []string{"id", "name", "description", "pinCode", "permissions", "createdAt", "updatedAt"},
	LegacyName:    "roles",
	KeyColumn:     "id",
	IDField:       "id",
})

// Settings holds application settings keyed by name, one document per group.
var Settings = register(&Codec{
	Name:         "settings",
	Collection:   "settings",
	Area:         "settings",
	RecordsField: "values",
	Grouping:     Single,
	Fields: []Field{
		{Name: "value", Kind: Any, Default: nil},
		{Name: "updatedAt", Kind: DateTime, Default: nil},
	},
	LegacyColumns: []string{"group", "key", "value", "updatedAt"},
	LegacyName:    "settings",
	KeyColumn:     "key",
	SubjectColumn: "group",
})
