package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

func entity(kv ...interface{}) *models.Entity {
	e := models.NewEntity(len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		e.Set(kv[i].(string), kv[i+1])
	}
	return e
}

func TestRow(t *testing.T) {
	columns := Columns([]*models.Entity{entity("a", 1, "b", 2)})
	assert.Equal(t, []string{"a", "b"}, columns)

	row, err := Row(entity("b", "x"), columns)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{nil, "x"}, row)

	_, err = Row(entity("a", 1, "b", 2, "c", 3), columns)
	assert.True(t, errors.IsType(err, errors.ErrorTypeShape))
	assert.Nil(t, Columns(nil))
}

func TestPayload(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{in: []byte("raw"), want: "raw"},
		{in: "text", want: "text"},
		{in: entity("a", "1", "b", nil), want: `{"a":"1","b":null}`},
		{in: models.Fields{"x", "y"}, want: `["x","y"]`},
	}
	for _, tt := range tests {
		got, err := Payload(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}

	_, err := Payload(1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
}
