package generator

import (
	"math/rand/v2"
	"reflect"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
)

const invalidPrefix = "INVALID_"

var timeType = reflect.TypeOf(time.Time{})

// corrupt returns a copy of p with one non-key field damaged: a string gets
// the INVALID_ prefix or a number becomes -1. Identifiers are never touched
// so the event stays routable. ok is false when p has no eligible field.
func corrupt(r *rand.Rand, p event.Payload) (event.Payload, string, bool) {
	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Struct {
		return p, "", false
	}
	cp := reflect.New(v.Type()).Elem()
	cp.Set(v)

	var fields []reflect.Value
	var names []string
	collect(cp, &fields, &names)
	if len(fields) == 0 {
		return p, "", false
	}
	i := r.IntN(len(fields))
	f := fields[i]
	switch f.Kind() {
	case reflect.String:
		f.SetString(invalidPrefix + f.String())
	case reflect.Int, reflect.Int64:
		f.SetInt(-1)
	case reflect.Float64:
		f.SetFloat(-1)
	}
	out, ok := cp.Interface().(event.Payload)
	if !ok {
		return p, "", false
	}
	return out, names[i], true
}

func collect(v reflect.Value, fields *[]reflect.Value, names *[]string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := v.Field(i)
		if sf.Type.Kind() == reflect.Struct && sf.Type != timeType {
			collect(fv, fields, names)
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "" || name == "-" || strings.HasSuffix(name, "_id") {
			continue
		}
		switch sf.Type.Kind() {
		case reflect.String, reflect.Int, reflect.Int64, reflect.Float64:
			*fields = append(*fields, fv)
			*names = append(*names, name)
		}
	}
}
