// Package session builds and inspects signed session tokens.
package session

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Type is the session privilege level.
type Type int

const (
	TypeUser  Type = 0
	TypeAdmin Type = 2
)

const (
	fieldExpiry = "_e"
	fieldType   = "_t"
	fieldUser   = "_u"

	randomSize = 16
	v2Prefix   = "v2"
)

// DefaultExpiry is the lifetime used when none is given.
const DefaultExpiry = 86400

var (
	nowFunc    = time.Now
	randReader = rand.Reader

	// ErrMalformed is returned for tokens that cannot be split or decoded.
	ErrMalformed = errors.New("malformed session token")
	// ErrSignature is returned when a decrypted token fails its digest check.
	ErrSignature = errors.New("session token signature mismatch")
)

// Field is one privilege entry. Order is preserved on the wire.
type Field struct {
	Key   string
	Value string
}

// ParsePrivileges splits "key[:value],..." into ordered fields. A bare "*"
// stands for "all:*".
func ParsePrivileges(privileges string) []Field {
	var fields []Field
	for _, token := range strings.Split(privileges, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if token == "*" {
			token = "all:*"
		}
		key, value, _ := strings.Cut(token, ":")
		fields = setField(fields, key, value)
	}
	return fields
}

func setField(fields []Field, key, value string) []Field {
	for i := range fields {
		if fields[i].Key == key {
			fields[i].Value = value
			return fields
		}
	}
	return append(fields, Field{Key: key, Value: value})
}

// GenerateV1 returns the legacy signed token. expiry is a lifetime in seconds.
func GenerateV1(secret, userID string, typ Type, partnerID int, expiry int64, privileges string) (string, error) {
	n, err := rand.Int(randReader, big.NewInt(32001))
	if err != nil {
		return "", fmt.Errorf("session random: %w", err)
	}
	pid := strconv.Itoa(partnerID)
	info := strings.Join([]string{
		pid,
		pid,
		strconv.FormatInt(nowFunc().Unix()+expiry, 10),
		strconv.Itoa(int(typ)),
		n.String(),
		userID,
		privileges,
	}, ";")
	sum := sha1.Sum([]byte(secret + info))
	signature := hex.EncodeToString(sum[:])
	return base64.StdEncoding.EncodeToString([]byte(signature + "|" + info)), nil
}

// GenerateV2 returns an AES encrypted token of the form "v2|<partnerId>|<payload>".
func GenerateV2(secret, userID string, typ Type, partnerID int, expiry int64, privileges string) (string, error) {
	fields := ParsePrivileges(privileges)
	fields = setField(fields, fieldExpiry, strconv.FormatInt(nowFunc().Unix()+expiry, 10))
	fields = setField(fields, fieldType, strconv.Itoa(int(typ)))
	fields = setField(fields, fieldUser, userID)

	salt := make([]byte, randomSize)
	if _, err := io.ReadFull(randReader, salt); err != nil {
		return "", fmt.Errorf("session random: %w", err)
	}
	plain := append(salt, encodeFields(fields)...)
	digest := sha1.Sum(plain)
	plain = append(digest[:], plain...)

	encrypted, err := aesCBC(secret, plain, true)
	if err != nil {
		return "", err
	}
	payload := base64.URLEncoding.EncodeToString(encrypted)
	return v2Prefix + "|" + strconv.Itoa(partnerID) + "|" + payload, nil
}

func encodeFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, url.QueryEscape(f.Key)+"="+url.QueryEscape(f.Value))
	}
	return strings.Join(parts, "&")
}

// Token is the decrypted content of a v2 token.
type Token struct {
	PartnerID  int
	UserID     string
	Type       Type
	Expiry     time.Time
	Privileges []Field
	Query      string
}

// Expired reports whether the token is past its expiry.
func (t Token) Expired() bool {
	return !nowFunc().Before(t.Expiry)
}

// DecodeV2 decrypts a v2 token and verifies its digest.
func DecodeV2(secret, token string) (Token, error) {
	parts := strings.SplitN(token, "|", 3)
	if len(parts) != 3 || parts[0] != v2Prefix {
		return Token{}, ErrMalformed
	}
	partnerID, err := strconv.Atoi(parts[1])
	if err != nil {
		return Token{}, fmt.Errorf("%w: partner id %q", ErrMalformed, parts[1])
	}
	encrypted, err := base64.URLEncoding.DecodeString(parts[2])
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	plain, err := aesCBC(secret, encrypted, false)
	if err != nil {
		return Token{}, err
	}
	plain = bytes.TrimRight(plain, "\x00")
	if len(plain) < sha1.Size+randomSize {
		return Token{}, ErrMalformed
	}
	digest, rest := plain[:sha1.Size], plain[sha1.Size:]
	sum := sha1.Sum(rest)
	if !bytes.Equal(digest, sum[:]) {
		return Token{}, ErrSignature
	}

	out := Token{PartnerID: partnerID, Query: string(rest[randomSize:])}
	for _, pair := range strings.Split(out.Query, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, _ := url.QueryUnescape(rawKey)
		value, _ := url.QueryUnescape(rawValue)
		switch key {
		case fieldExpiry:
			sec, _ := strconv.ParseInt(value, 10, 64)
			out.Expiry = time.Unix(sec, 0)
		case fieldType:
			typ, _ := strconv.Atoi(value)
			out.Type = Type(typ)
		case fieldUser:
			out.UserID = value
		default:
			out.Privileges = append(out.Privileges, Field{Key: key, Value: value})
		}
	}
	return out, nil
}

// aesCBC runs AES-128-CBC with a zero IV. The key is the first 16 bytes of
// SHA-1(secret); input is zero padded to the block size.
func aesCBC(secret string, data []byte, encrypt bool) ([]byte, error) {
	keySum := sha1.Sum([]byte(secret))
	block, err := aes.NewCipher(keySum[:16])
	if err != nil {
		return nil, fmt.Errorf("session cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if !encrypt {
		if len(data) == 0 || len(data)%aes.BlockSize != 0 {
			return nil, fmt.Errorf("%w: payload is not block aligned", ErrMalformed)
		}
		out := make([]byte, len(data))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
		return out, nil
	}
	if rem := len(data) % aes.BlockSize; rem != 0 {
		data = append(data, make([]byte, aes.BlockSize-rem)...)
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}
