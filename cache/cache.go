// Package cache holds a credential client-side for the short windows where
// script needs it directly, bound to the device it was stored on.
//
// The at-rest obfuscation is a keyed XOR stream, NOT strong cryptography: it
// defeats casual inspection of the storage area and nothing more. Do not
// upgrade it quietly; callers depend on the exact fail-secure behavior when
// a blob no longer deobfuscates.
package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/stackshield/sessionguard/monitor"
	"github.com/stackshield/sessionguard/token"
)

const (
	// credentialKey addresses the obfuscated credential blob.
	credentialKey = "sg.credential.v2"
	// legacyCredentialKey is where older deployments kept the raw token.
	legacyCredentialKey = "sg.credential"

	entryFormatVersion1 = 1

	// DefaultMaxAge bounds how long a cached credential may live regardless
	// of the token's own expiry.
	DefaultMaxAge = 24 * time.Hour
)

var (
	// ErrNoSecret is returned when the cache is built without an
	// obfuscation secret. Storing in the clear is never a fallback.
	ErrNoSecret = errors.New("cache obfuscation secret is empty")
	// ErrStoreFailed wraps backing-storage write failures.
	ErrStoreFailed = errors.New("credential store failed")
)

// FingerprintFunc returns the current device fingerprint. It is called on
// every store and every load so a changed device is caught at read time.
type FingerprintFunc func() string

// Cache is the client-side credential cache. Load enforces, in order:
// fingerprint binding, storage age, then the token's own expiry. Any failure
// clears the cache and reads as "no credential"; only the security monitor
// sees which check failed.
type Cache struct {
	storage     Storage
	secret      []byte
	fingerprint FingerprintFunc
	maxAge      time.Duration
	mon         *monitor.Monitor
	onForced    func()

	now func() time.Time
}

// New creates a credential cache. maxAge <= 0 falls back to [DefaultMaxAge];
// mon and onForced may be nil. onForced runs after a fingerprint mismatch has
// cleared the cache, to let the owner tear the rest of the session down.
//
// New migrates any plaintext credential left by an older deployment before
// returning, so a caller that only ever calls Load never leaves the plaintext
// copy behind.
func New(storage Storage, secret []byte, fingerprint FingerprintFunc, maxAge time.Duration, mon *monitor.Monitor, onForced func()) (*Cache, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if storage == nil {
		return nil, errors.New("cache storage is nil")
	}
	if fingerprint == nil {
		return nil, errors.New("cache fingerprint func is nil")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	c := &Cache{
		storage:     storage,
		secret:      append([]byte(nil), secret...),
		fingerprint: fingerprint,
		maxAge:      maxAge,
		mon:         mon,
		onForced:    onForced,
		now:         time.Now,
	}
	if err := c.MigrateLegacy(); err != nil {
		return nil, err
	}
	return c, nil
}

// Store obfuscates the credential and writes it with the current fingerprint
// and timestamp. A storage failure surfaces as an error; the credential is
// never written in the clear.
func (c *Cache) Store(cred *token.Token) error {
	if cred == nil {
		return errors.New("nil credential")
	}

	blob, err := c.encodeEntry(cred.Raw())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	if err := c.storage.Set(credentialKey, blob); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	return nil
}

// Load returns the cached credential or nil. The three validation failures
// are indistinguishable to the caller; they differ only in what reaches the
// security monitor. A successful load emits a low-severity TokenAccess event
// so that read bursts remain visible upstream.
func (c *Cache) Load() *token.Token {
	blob, err := c.storage.Get(credentialKey)
	if err != nil {
		return nil
	}

	fingerprint, storedAt, raw, err := c.decodeEntry(blob)
	if err != nil {
		// A blob that no longer deobfuscates is cleared, never trusted.
		c.Clear()
		return nil
	}

	if fingerprint != c.fingerprint() {
		c.report(monitor.FingerprintMismatch, monitor.SeverityCritical, map[string]any{
			"reason": "cached credential bound to a different device",
		})
		c.Clear()
		if c.onForced != nil {
			c.onForced()
		}
		return nil
	}

	if c.now().Sub(storedAt) > c.maxAge {
		c.report(monitor.TokenExpiry, monitor.SeverityMedium, map[string]any{
			"reason":    "cached credential exceeded max storage age",
			"stored_at": storedAt,
		})
		c.Clear()
		return nil
	}

	cred, err := token.Parse(raw)
	if err != nil || cred.IsExpired(c.now()) {
		c.report(monitor.TokenExpiry, monitor.SeverityMedium, map[string]any{
			"reason": "cached credential expired",
		})
		c.Clear()
		return nil
	}

	c.report(monitor.TokenAccess, monitor.SeverityLow, map[string]any{
		"subject": cred.Subject(),
	})
	return cred
}

// Clear deletes the cached credential. Clearing an empty cache is a no-op.
func (c *Cache) Clear() {
	_ = c.storage.Delete(credentialKey)
}

// MigrateLegacy moves a pre-existing plaintext credential into the obfuscated
// entry and removes the plaintext copy. An expired legacy credential is
// discarded without migrating. Running the migration again after it has
// completed is a no-op. [New] runs it automatically; the method stays exported
// for embedders that share the storage area with components that may rewrite
// the legacy key afterwards.
func (c *Cache) MigrateLegacy() error {
	raw, err := c.storage.Get(legacyCredentialKey)
	if err != nil {
		return nil
	}

	cred, parseErr := token.Parse(string(raw))
	if parseErr == nil && !cred.IsExpired(c.now()) {
		if err := c.Store(cred); err != nil {
			return err
		}
	}
	return c.storage.Delete(legacyCredentialKey)
}

func (c *Cache) report(typ monitor.EventType, sev monitor.Severity, details map[string]any) {
	if c.mon == nil {
		return
	}
	c.mon.Log(monitor.Event{Type: typ, Severity: sev, Details: details})
}

// encodeEntry packs fingerprint, timestamp and the XOR-obfuscated token into
// one versioned blob.
func (c *Cache) encodeEntry(raw string) ([]byte, error) {
	fingerprint := c.fingerprint()
	if fingerprint == "" {
		return nil, errors.New("empty device fingerprint")
	}
	if len(fingerprint) > 255 {
		return nil, errors.New("fingerprint too long")
	}
	obfuscated := c.xor([]byte(raw))
	if len(obfuscated) > 65535 {
		return nil, errors.New("credential too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(entryFormatVersion1)
	buf.WriteByte(byte(len(fingerprint)))
	buf.WriteString(fingerprint)
	if err := binary.Write(&buf, binary.BigEndian, c.now().Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(obfuscated))); err != nil {
		return nil, err
	}
	buf.Write(obfuscated)
	return buf.Bytes(), nil
}

func (c *Cache) decodeEntry(blob []byte) (fingerprint string, storedAt time.Time, raw string, err error) {
	reader := bytes.NewReader(blob)

	version, err := reader.ReadByte()
	if err != nil || version != entryFormatVersion1 {
		return "", time.Time{}, "", errors.New("unknown entry version")
	}

	n, err := reader.ReadByte()
	if err != nil {
		return "", time.Time{}, "", err
	}
	fp := make([]byte, n)
	if _, err := io.ReadFull(reader, fp); err != nil {
		return "", time.Time{}, "", err
	}

	var unix int64
	if err := binary.Read(reader, binary.BigEndian, &unix); err != nil {
		return "", time.Time{}, "", err
	}

	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", time.Time{}, "", err
	}
	obfuscated := make([]byte, length)
	if _, err := io.ReadFull(reader, obfuscated); err != nil {
		return "", time.Time{}, "", err
	}

	return string(fp), time.Unix(unix, 0), string(c.xor(obfuscated)), nil
}

// xor applies the keyed stream; it is its own inverse.
func (c *Cache) xor(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ c.secret[i%len(c.secret)]
	}
	return out
}
