package hook

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap/zapcore"
)

var (
	levelType = reflect.TypeOf(zapcore.InfoLevel)
)

// Level parses level names such as "debug" or "WARN" into zapcore.Level. An
// empty string means info.
func Level() mapstructure.DecodeHookFuncType {
	return func(in reflect.Type, out reflect.Type, val interface{}) (interface{}, error) {
		if in.Kind() != reflect.String || out != levelType {
			return val, nil
		}
		name := strings.TrimSpace(val.(string))
		if name == "" {
			return zapcore.InfoLevel, nil
		}
		return zapcore.ParseLevel(name)
	}
}
