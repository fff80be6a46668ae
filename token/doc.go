// Package token models the signed three-segment credential token: an
// unverified structural parse for client-side expiry introspection, and a
// signature-verifying Manager for the server side.
package token
