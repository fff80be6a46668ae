// Package internaldefs holds the shared metric name and help-text tables
// consumed by the otel and prometheus exporters. It exists so both
// exporters render the exact same metric families without duplicating the
// definitions.
package internaldefs
