package hook

import (
	"fmt"
	"reflect"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-viper/mapstructure/v2"
)

var (
	snowflakeType = reflect.TypeOf(snowflake.ID(0))
)

// Snowflake decodes IDs written as strings or integers. Floats are rejected
// since they can't hold every ID exactly.
func Snowflake() mapstructure.DecodeHookFuncType {
	return func(in reflect.Type, out reflect.Type, val interface{}) (interface{}, error) {
		if out != snowflakeType {
			return val, nil
		}
		switch in.Kind() {
		case reflect.String:
			return snowflake.Parse(val.(string))
		case reflect.Int, reflect.Int64:
			n := reflect.ValueOf(val).Int()
			if n < 0 {
				return nil, fmt.Errorf("snowflake ID %d is negative", n)
			}
			return snowflake.ID(n), nil
		case reflect.Uint, reflect.Uint64:
			return snowflake.ID(reflect.ValueOf(val).Uint()), nil
		case reflect.Float32, reflect.Float64:
			return nil, fmt.Errorf("snowflake ID %v must be quoted or an integer", val)
		}
		return val, nil
	}
}
