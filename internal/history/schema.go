package history

import (
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/christopherklint97/balancr/internal/metrics"
)

var clockType = reflect.TypeOf(metrics.ClockTime(0))

// Schemas returns the JSON Schema of every published document, keyed by file
// name.
func Schemas() map[string]*jsonschema.Schema {
	r := &jsonschema.Reflector{
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == clockType {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^([01][0-9]|2[0-3]):[0-5][0-9]$`,
					Description: "local clock time HH:MM",
				}
			}
			return nil
		},
	}

	out := map[string]*jsonschema.Schema{
		DailyFileName: r.Reflect(&DailyDocument{}),
	}
	for _, kind := range PeriodKinds {
		s := r.Reflect(&PeriodDocument{})
		s.Title = string(kind) + " aggregations"
		out[kind.FileName()] = s
	}
	return out
}
