// Package otel bridges the engine's in-process metric snapshot into
// OpenTelemetry observable instruments. Registration is pull-based: the
// SDK's reader drives the callback, so the engine's hot paths never touch
// OTel machinery.
package otel
