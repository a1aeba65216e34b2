package hook

import (
	"regexp"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type target struct {
	Level  zapcore.Level
	Ignore *regexp.Regexp
	IDs    []snowflake.ID
}

func decode(t *testing.T, in map[string]any) (*target, error) {
	t.Helper()
	out := &target{}
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(Level(), Regexp(), Snowflake()),
		Result:     out,
	})
	require.NoError(t, err)
	return out, d.Decode(in)
}

func TestLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" WARN ": zapcore.WarnLevel,
		"":       zapcore.InfoLevel,
	}
	for in, want := range tests {
		out, err := decode(t, map[string]any{"level": in})
		require.NoError(t, err, in)
		assert.Equal(t, want, out.Level, in)
	}

	_, err := decode(t, map[string]any{"level": "loud"})
	assert.Error(t, err)
}

func TestRegexp(t *testing.T) {
	out, err := decode(t, map[string]any{"ignore": "^bot-"})
	require.NoError(t, err)
	require.NotNil(t, out.Ignore)
	assert.True(t, out.Ignore.MatchString("bot-spam"))

	out, err = decode(t, map[string]any{"ignore": ""})
	require.NoError(t, err)
	assert.Nil(t, out.Ignore)

	_, err = decode(t, map[string]any{"ignore": "("})
	assert.Error(t, err)
}

func TestSnowflake(t *testing.T) {
	out, err := decode(t, map[string]any{"ids": []any{"1234567890123456789", 42}})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1234567890123456789, 42}, out.IDs)

	_, err = decode(t, map[string]any{"ids": []any{1.5e18}})
	assert.Error(t, err)
	_, err = decode(t, map[string]any{"ids": []any{-1}})
	assert.Error(t, err)
}
