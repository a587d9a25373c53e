// Package internaldefs holds the shared counter definitions used by the
// metrics exporters. It is internal to the export packages; applications
// should import the prometheus or otel exporter instead.
package internaldefs
