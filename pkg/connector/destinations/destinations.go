// Package destinations links every built-in loader into the registry.
package destinations

import (
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/bigquery"
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/file"
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/gcs"
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/kafka"
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/mongodb"
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/postgres"
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/pubsub"
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/s3"
	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations/sqldb"
)
