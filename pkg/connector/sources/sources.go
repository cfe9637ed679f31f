// Package sources links every built-in extractor into the registry.
package sources

import (
	_ "github.com/ajitpratap0/streametl/pkg/connector/sources/csv"
	_ "github.com/ajitpratap0/streametl/pkg/connector/sources/http"
	_ "github.com/ajitpratap0/streametl/pkg/connector/sources/json"
	_ "github.com/ajitpratap0/streametl/pkg/connector/sources/postgres"
	_ "github.com/ajitpratap0/streametl/pkg/connector/sources/xlsx"
)
