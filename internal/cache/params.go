package cache

import (
	"encoding/json"
	"reflect"
)

// Params - параметры запроса, под которые была получена запись кэша
// (номер страницы, фильтры, роль и т.п.)
type Params map[string]any

// ParamsMatch сообщает, может ли запись, полученная с параметрами a, обслужить запрос с параметрами b
// наборы равны, если каждый ключ из любого из них есть в обоих и значения - одинаковые примитивы
// составные значения (срезы, map, структуры) равными не считаются никогда
func ParamsMatch(a, b Params) bool {
	if len(a) != len(b) {
		return false
	}
	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			return false
		}
		if !primitiveEqual(av, bv) {
			return false
		}
	}
	// длины равны и все ключи a есть в b, значит и все ключи b есть в a
	return true
}

// primitiveEqual сравнивает два значения как примитивы
// числа сравниваются по значению независимо от типа, потому что после JSON они становятся float64
func primitiveEqual(a, b any) bool {
	na, ok := normalize(a)
	if !ok {
		return false
	}
	nb, ok := normalize(b)
	if !ok {
		return false
	}
	return na == nb
}

type nullValue struct{}

func normalize(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nullValue{}, true
	case string:
		return x, true
	case bool:
		return x, true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	}
	return nil, false
}
