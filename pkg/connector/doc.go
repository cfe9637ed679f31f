// Package connector groups the stages a pipeline is built from.
//
// The sub-packages are organized as follows:
//
//   - core: the Source, Transform and Sink interfaces every stage
//     implements. The pipeline composer depends on nothing else.
//
//   - registry: resolves the identifiers given on the command line (file
//     paths, URLs, names) to stage instances. Stage packages register
//     factories from init().
//
//   - sources: extractors for delimited text, spreadsheets, JSON, http(s)
//     URLs and PostgreSQL queries. Blank-import sources to link them all.
//
//   - transforms: csv, json, xlsx, avro, parquet and arrow encoders plus
//     the compression codecs.
//
//   - destinations: loaders for standard output, files, object storage
//     (S3, GCS), brokers (Kafka, NATS, MQTT) and databases (PostgreSQL,
//     MySQL, Snowflake, MongoDB, BigQuery). Blank-import destinations to
//     link them all.
//
//   - base: batching and retry plumbing shared by database loaders.
//
// # Plugins
//
// Any value satisfying a core interface can be registered under a plain
// name and used like a built-in:
//
//	registry.RegisterTransform("upper", "upper-case every value",
//	    func(*registry.Options) (core.Transform, error) {
//	        return core.TransformFunc(upper), nil
//	    })
//
// Names are resolved after files and URLs for extractors, and before URLs
// and file paths for loaders.
package connector
