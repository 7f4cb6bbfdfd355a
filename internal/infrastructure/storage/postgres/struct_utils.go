package postgres

import (
	"reflect"
	"sync"
)

// column is one db-tagged field reached through an index path, so fields of
// embedded structs (entity.Document, entity.BaseDocument) are read directly.
type column struct {
	name  string
	index []int
}

// columnPlans caches the ordered columns of a struct type.
var columnPlans sync.Map // reflect.Type -> []column

func columnsOf(t reflect.Type) []column {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := columnPlans.Load(t); ok {
		return cached.([]column)
	}

	cols := appendColumns(nil, t, nil)
	columnPlans.Store(t, cols)
	return cols
}

func appendColumns(cols []column, t reflect.Type, prefix []int) []column {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			cols = appendColumns(cols, f.Type, path)
			continue
		}

		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		cols = append(cols, column{name: tag, index: path})
	}
	return cols
}

// ExtractDBColumns returns the "db" tag names of T in declaration order,
// embedded structs included. Repositories call it once at construction.
//
//	ExtractDBColumns[invoice.Invoice]()
//	// ["id", "created_at", ..., "number", "doc_date", "patient_ref", ...]
func ExtractDBColumns[T any]() []string {
	cols := columnsOf(reflect.TypeOf((*T)(nil)).Elem())
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap maps the db-tagged fields of v (a struct or pointer to one) by
// column name. Fields tagged "-" or without a tag are skipped.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	cols := columnsOf(rv.Type())
	res := make(map[string]any, len(cols))
	for _, c := range cols {
		res[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return res
}
