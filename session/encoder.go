package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/stackshield/sessionguard/token"
)

const recordFormatVersion1 = 1

// ErrCorruptRecord is returned when a stored session blob cannot be decoded.
var ErrCorruptRecord = errors.New("session record corrupt")

// Encode serializes r into the compact binary record format. The encoding is
// append-only: new versions add fields but never reinterpret old ones.
func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersion1)

	if err := writeString8(&buf, r.SessionID); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, r.OwnerUserID); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, r.AntiForgeryToken); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, r.Credential.Raw()); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt.Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt.Unix()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a record previously produced by Encode. The embedded
// credential is re-parsed structurally; a credential that lost its expiry
// claim decodes to an always-expired token rather than failing the record.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if version != recordFormatVersion1 {
		return nil, ErrCorruptRecord
	}

	r := &Record{}
	if r.SessionID, err = readString8(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if r.OwnerUserID, err = readString8(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if r.AntiForgeryToken, err = readString8(reader); err != nil {
		return nil, ErrCorruptRecord
	}

	rawCredential, err := readString16(reader)
	if err != nil {
		return nil, ErrCorruptRecord
	}
	cred, err := token.Parse(rawCredential)
	if err != nil && !errors.Is(err, token.ErrMissingExpiry) {
		return nil, ErrCorruptRecord
	}
	r.Credential = cred

	var createdAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, ErrCorruptRecord
	}
	r.CreatedAt = time.Unix(createdAt, 0)
	r.ExpiresAt = time.Unix(expiresAt, 0)

	return r, nil
}

func writeString8(buf *bytes.Buffer, s string) error {
	if len(s) > 255 {
		return errors.New("field too long")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func writeString16(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString8(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func readString16(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
