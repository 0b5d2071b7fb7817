package assert

import (
	"fmt"
	"reflect"
)

func NotNil(obj any, format string, args ...interface{}) {
	if isNil(obj) {
		panic(formatMsg(format, args...))
	}
}

// isNil also catches typed nils stored in an interface.
func isNil(obj any) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func formatMsg(format string, args ...interface{}) string {
	return "assertion failed: " + fmt.Sprintf(format, args...)
}
