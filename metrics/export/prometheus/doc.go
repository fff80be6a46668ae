// Package prometheus renders the engine's metric snapshot in Prometheus
// text exposition format. It deliberately avoids the Prometheus client
// library: the engine already keeps its own atomic counters, so the
// exporter only needs a stable textual rendering of one snapshot.
package prometheus
