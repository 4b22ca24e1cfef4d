// Package ident generates the opaque identifiers used for connections and
// tables.
package ident

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Crockford's base32 alphabet, as used by TypeID
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// TableIDLength is the length of an encoded table ID
const TableIDLength = 26

// Generator produces identifiers. A nil source uses crypto/rand; tests pass
// a seeded reader for reproducible IDs.
type Generator struct {
	mu     sync.Mutex
	source io.Reader
}

// NewGenerator creates a generator reading randomness from source
func NewGenerator(source io.Reader) *Generator {
	return &Generator{source: source}
}

var defaultGenerator = NewGenerator(nil)

// ConnID returns a new random 128-bit connection identifier
func ConnID() uuid.UUID {
	return defaultGenerator.ConnID()
}

// TableID returns a new time-sortable table identifier
func TableID() string {
	return defaultGenerator.TableID()
}

// ConnID returns a UUIDv4 drawn from the generator's source
func (g *Generator) ConnID() uuid.UUID {
	if g == nil || g.source == nil {
		return uuid.New()
	}
	g.mu.Lock()
	id, err := uuid.NewRandomFromReader(g.source)
	g.mu.Unlock()
	if err != nil {
		panic("ident: reading random bytes: " + err.Error())
	}
	return id
}

// TableID returns a UUIDv7 encoded as a 26 character base32 string. IDs
// created later sort after earlier ones.
func (g *Generator) TableID() string {
	var (
		id  uuid.UUID
		err error
	)
	if g == nil || g.source == nil {
		id, err = uuid.NewV7()
	} else {
		g.mu.Lock()
		id, err = uuid.NewV7FromReader(g.source)
		g.mu.Unlock()
	}
	if err != nil {
		panic("ident: generating table id: " + err.Error())
	}
	return encodeBase32(id)
}

// encodeBase32 encodes 128 bits as 26 characters. The value is treated as a
// 130-bit number with two leading zero bits, so the first character is 0-7.
func encodeBase32(data [16]byte) string {
	var sb strings.Builder
	sb.Grow(TableIDLength)

	for i := 0; i < TableIDLength; i++ {
		var value byte
		top := 129 - 5*i
		for p := top; p > top-5; p-- {
			value = value<<1 | bit(data, p)
		}
		sb.WriteByte(alphabet[value])
	}
	return sb.String()
}

// bit returns bit p of data counting from the least significant bit
func bit(data [16]byte, p int) byte {
	if p >= 128 {
		return 0
	}
	return (data[15-p/8] >> (p % 8)) & 1
}

// Validate checks that id is a well formed table ID
func Validate(id string) error {
	if len(id) != TableIDLength {
		return fmt.Errorf("table ID must be exactly %d characters, got %d", TableIDLength, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("table ID first character must be 0-7, got %c", id[0])
	}
	for i, char := range id {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}
