package document

import (
	"bytes"
	"reflect"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Keys skipped at every level when comparing a draft with its live copy.
var ignoredDiffKeys = map[string]bool{
	FieldUpdatedAt: true,
}

type valueKind int

const (
	kindNil valueKind = iota
	kindBool
	kindNumber
	kindString
	kindTime
	kindObjectID
	kindBinary
	kindArray
	kindObject
	kindOther
)

// Differs reports whether the draft no longer matches its live copy.
func Differs(current, live bson.M) bool {
	return !Equal(current, live)
}

// Equal compares a current value with its live counterpart.
//
// Values of different kinds never match. Numbers match by value whatever
// their width and dates by instant at millisecond precision, which is what
// survives a BSON round trip. Arrays need the same length and matching
// elements. Objects match when every key of the live side (ignoring
// updatedAt) exists on the current side with an equal value; keys present
// only on the current side are not considered.
func Equal(current, live interface{}) bool {
	ck, lk := kindOf(current), kindOf(live)
	if ck == kindNil || lk == kindNil {
		return ck == lk
	}
	if ck != lk {
		return false
	}

	switch ck {
	case kindBool:
		return reflect.ValueOf(current).Bool() == reflect.ValueOf(live).Bool()
	case kindNumber:
		return numbersEqual(current, live)
	case kindString:
		return reflect.ValueOf(current).String() == reflect.ValueOf(live).String()
	case kindTime:
		return asTime(current).UnixMilli() == asTime(live).UnixMilli()
	case kindObjectID:
		return current.(primitive.ObjectID) == live.(primitive.ObjectID)
	case kindBinary:
		return bytes.Equal(asBytes(current), asBytes(live))
	case kindArray:
		return arraysEqual(current, live)
	case kindObject:
		return objectsEqual(asMap(current), asMap(live))
	}
	return reflect.DeepEqual(current, live)
}

func arraysEqual(current, live interface{}) bool {
	cv, lv := reflect.ValueOf(current), reflect.ValueOf(live)
	if cv.Len() != lv.Len() {
		return false
	}
	for i := 0; i < lv.Len(); i++ {
		if !Equal(cv.Index(i).Interface(), lv.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func objectsEqual(current, live map[string]interface{}) bool {
	for k, lv := range live {
		if ignoredDiffKeys[k] {
			continue
		}
		cv, ok := current[k]
		if !ok {
			return false
		}
		if !Equal(cv, lv) {
			return false
		}
	}
	return true
}

func kindOf(v interface{}) valueKind {
	switch t := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return kindNil
	case time.Time, primitive.DateTime:
		return kindTime
	case *time.Time:
		if t == nil {
			return kindNil
		}
		return kindTime
	case primitive.ObjectID:
		return kindObjectID
	case primitive.Decimal128:
		return kindNumber
	case primitive.Binary:
		return kindBinary
	case primitive.D:
		if t == nil {
			return kindNil
		}
		return kindObject
	case []byte:
		if t == nil {
			return kindNil
		}
		return kindBinary
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return kindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kindNumber
	case reflect.String:
		return kindString
	case reflect.Slice:
		if rv.IsNil() {
			return kindNil
		}
		return kindArray
	case reflect.Array:
		return kindArray
	case reflect.Map:
		if rv.IsNil() {
			return kindNil
		}
		if rv.Type().Key().Kind() == reflect.String {
			return kindObject
		}
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return kindNil
		}
	}
	return kindOther
}

func numbersEqual(a, b interface{}) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if isSignedInt(av) && isSignedInt(bv) {
		return av.Int() == bv.Int()
	}
	return asFloat(a) == asFloat(b)
}

func isSignedInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func asFloat(v interface{}) float64 {
	if d, ok := v.(primitive.Decimal128); ok {
		f, err := strconv.ParseFloat(d.String(), 64)
		if err != nil {
			return 0
		}
		return f
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	}
	return rv.Float()
}

func asTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		return *t
	case primitive.DateTime:
		return t.Time()
	}
	return time.Time{}
}

func asBytes(v interface{}) []byte {
	if b, ok := v.(primitive.Binary); ok {
		return b.Data
	}
	return v.([]byte)
}

func asMap(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case bson.M:
		return m
	case map[string]interface{}:
		return m
	case primitive.D:
		return m.Map()
	}
	rv := reflect.ValueOf(v)
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out
}
