package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixID is a 6-byte record identifier. It renders as a 10-character
// Crockford Base32 string and is stored in BSON as BinData with custom
// subtype 0x80.
type SixID [6]byte

// SixIDHookFunc lets tests intercept ID generation. When override is
// true the returned ID is used instead of random bytes.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook is consulted by NewSixID when set. Tests use it to force
// ID collisions.
var NewSixIDHook SixIDHookFunc

// NewSixID returns a fresh random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		return SixID{}
	}
	return id
}

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// crockfordDecode maps input bytes to their 5-bit values; 0xFF marks an
// invalid character. Lowercase letters and the usual confusables
// (o->0, i/l->1) are accepted.
var crockfordDecode [256]byte

func init() {
	for i := range crockfordDecode {
		crockfordDecode[i] = 0xFF
	}
	for i := 0; i < len(crockfordAlphabet); i++ {
		c := crockfordAlphabet[i]
		crockfordDecode[c] = byte(i)
		if c >= 'A' && c <= 'Z' {
			crockfordDecode[c+'a'-'A'] = byte(i)
		}
	}
	crockfordDecode['o'] = crockfordDecode['0']
	crockfordDecode['O'] = crockfordDecode['0']
	crockfordDecode['i'] = crockfordDecode['1']
	crockfordDecode['I'] = crockfordDecode['1']
	crockfordDecode['l'] = crockfordDecode['1']
	crockfordDecode['L'] = crockfordDecode['1']
}

// String encodes the ID as uppercase Crockford Base32. 48 bits always
// encode to exactly 10 characters.
func (u SixID) String() string {
	var out [10]byte
	var bits, offset uint
	n := 0
	for _, b := range u {
		bits |= uint(b) << offset
		offset += 8
		for offset >= 5 {
			out[n] = crockfordAlphabet[bits&0x1F]
			n++
			bits >>= 5
			offset -= 5
		}
	}
	if offset > 0 {
		out[n] = crockfordAlphabet[bits&0x1F]
		n++
	}
	return string(out[:n])
}

// ParseSixID parses the Crockford Base32 form produced by String.
func ParseSixID(s string) (SixID, error) {
	return ParseCrockfordSixID(s)
}

// ParseCrockfordSixID decodes a 10-character Crockford Base32 string.
// Hyphens and spaces are stripped first; an empty string decodes to the
// zero ID.
func ParseCrockfordSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}

	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) != 10 {
		return SixID{}, errors.New("invalid Crockford Base32 SixID: string length must be 10")
	}

	var id SixID
	var bits uint64
	var offset uint
	n := 0
	for i := 0; i < len(s); i++ {
		val := crockfordDecode[s[i]]
		if val == 0xFF {
			return SixID{}, errors.New("invalid character in Crockford Base32 SixID")
		}
		bits |= uint64(val) << offset
		offset += 5
		for offset >= 8 && n < len(id) {
			id[n] = byte(bits & 0xFF)
			n++
			bits >>= 8
			offset -= 8
		}
	}
	if n != len(id) {
		return SixID{}, errors.New("invalid Crockford Base32 SixID: couldn't decode 6 bytes")
	}
	return id, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (u SixID) MarshalBinary() ([]byte, error) {
	return u[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (u *SixID) UnmarshalBinary(data []byte) error {
	if len(data) != len(u) {
		return errors.New("invalid SixID length")
	}
	copy(u[:], data)
	return nil
}

// GetBSON stores the ID as BinData with custom subtype 0x80.
func (u SixID) GetBSON() (interface{}, error) {
	return primitive.Binary{Subtype: 0x80, Data: u[:]}, nil
}

// SetBSON accepts BinData with subtype 0x80 and exactly 6 bytes; a BSON
// null decodes to the zero ID.
func (u *SixID) SetBSON(raw interface{}) error {
	if raw == nil {
		*u = SixID{}
		return nil
	}
	bin, ok := raw.(primitive.Binary)
	if !ok {
		*u = SixID{}
		return errors.New("invalid BSON type for SixID: expected primitive.Binary")
	}
	if bin.Subtype != 0x80 || len(bin.Data) != len(u) {
		*u = SixID{}
		return errors.New("invalid BSON binary data for SixID: incorrect subtype or length")
	}
	copy(u[:], bin.Data)
	return nil
}

// MarshalJSON renders the ID as its Crockford Base32 string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON parses the Crockford Base32 string form.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
