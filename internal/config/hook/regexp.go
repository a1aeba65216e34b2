package hook

import (
	"reflect"
	"regexp"

	"github.com/go-viper/mapstructure/v2"
)

var (
	regexpType = reflect.TypeOf(&regexp.Regexp{})
)

// Regexp compiles strings into *regexp.Regexp. An empty string leaves it nil.
func Regexp() mapstructure.DecodeHookFuncType {
	return func(in reflect.Type, out reflect.Type, val interface{}) (interface{}, error) {
		if in.Kind() == reflect.String && out == regexpType {
			if val.(string) == "" {
				return (*regexp.Regexp)(nil), nil
			}
			return regexp.Compile(val.(string))
		}
		return val, nil
	}
}
