package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoZeroFields(t *testing.T) {
	cfg := Default()

	for _, field := range visit(newVar(*cfg), "Config", false) {
		assert.Fail(t, "zero-value field", field)
	}
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv("H1_TEST_UNSET_")
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("H1_HEADERS_MAX_PAIRS", "0")
		t.Setenv("H1_NET_READ_TIMEOUT", "15s")
		t.Setenv("H1_HTTP_ADDR", "127.0.0.1:80")

		cfg, err := FromEnv("H1_")
		require.NoError(t, err)
		require.Zero(t, cfg.Headers.MaxPairs)
		require.Equal(t, 15*time.Second, cfg.NET.ReadTimeout)
		require.Equal(t, "127.0.0.1:80", cfg.HTTP.Addr)
		require.Equal(t, Default().NET.ReadBufferSize, cfg.NET.ReadBufferSize)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Setenv("H1_NET_READ_BUFFER_SIZE", "a lot")
		_, err := FromEnv("H1_")
		require.Error(t, err)
	})
}

type variable struct {
	Type  reflect.Type
	Value reflect.Value
}

func newVar(a any) variable {
	return variable{reflect.TypeOf(a), reflect.ValueOf(a)}
}

func visit(a variable, name string, nullable bool) (fields []string) {
	if a.Type.Kind() == reflect.Struct {
		for field := range a.Value.NumField() {
			v1 := variable{a.Type.Field(field).Type, a.Value.Field(field)}
			fieldname := a.Type.Field(field).Name
			isNullable := a.Type.Field(field).Tag.Get("test") == "nullable"
			fields = append(fields, visit(v1, name+"."+fieldname, isNullable)...)
		}

		return fields
	}

	if a.Value.IsZero() && !nullable {
		return []string{name}
	}

	return nil
}
