package base

import (
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/json"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// Columns returns the key order of the first record in batch. Loaders with
// a fixed table layout use it as their column list.
func Columns(batch []*models.Entity) []string {
	if len(batch) == 0 {
		return nil
	}
	return batch[0].Keys()
}

// Row returns e's values in column order. Missing keys are nil; keys not in
// columns are a shape error since the target has no place for them.
func Row(e *models.Entity, columns []string) ([]interface{}, error) {
	if e.Len() > len(columns) {
		for _, k := range e.Keys() {
			if !contains(columns, k) {
				return nil, errors.Newf(errors.ErrorTypeShape, "record key %q is not a target column", k).
					WithDetail("columns", columns)
			}
		}
	}
	row := make([]interface{}, len(columns))
	for i, col := range columns {
		row[i], _ = e.Get(col)
	}
	return row, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Payload encodes a value for message-oriented loaders: keyed records become
// JSON objects, text and bytes pass through.
func Payload(v interface{}) ([]byte, error) {
	switch c := v.(type) {
	case []byte:
		return c, nil
	case string:
		return []byte(c), nil
	case *models.Entity:
		data, err := json.Marshal(c)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSink, "failed to encode record")
		}
		return data, nil
	case models.Fields:
		data, err := json.Marshal([]string(c))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSink, "failed to encode row")
		}
		return data, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeSink, "cannot publish %T", v)
	}
}
