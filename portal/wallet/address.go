package wallet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"
)

const (
	ss58AccountLen  = 32
	ss58ChecksumLen = 2
	ss58MaxPrefix   = 16383
)

var ss58Context = []byte("SS58PRE")

// IsEVMAddress reports whether addr is a 0x-prefixed 20 byte hex address.
// Mixed-case addresses must carry a valid EIP-55 checksum.
func IsEVMAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return false
	}
	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(addr).Hex() == addr
}

// IsSS58Address reports whether addr is a well formed SS58 account address.
func IsSS58Address(addr string) bool {
	_, _, err := DecodeSS58(addr)
	return err == nil
}

// DecodeSS58 returns the network prefix and the 32 byte account id of an SS58 address.
func DecodeSS58(addr string) (uint16, []byte, error) {
	raw := base58.Decode(addr)
	if len(raw) == 0 {
		return 0, nil, errors.New("address is not valid base58")
	}

	var prefix uint16
	prefixLen := 1
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
	case raw[0] < 128:
		if len(raw) < 2 {
			return 0, nil, errors.New("address too short")
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return 0, nil, fmt.Errorf("reserved address prefix byte %d", raw[0])
	}

	if len(raw) != prefixLen+ss58AccountLen+ss58ChecksumLen {
		return 0, nil, fmt.Errorf("unexpected address length %d", len(raw))
	}
	body := raw[:len(raw)-ss58ChecksumLen]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:ss58ChecksumLen], raw[len(body):]) {
		return 0, nil, errors.New("address checksum mismatch")
	}
	return prefix, append([]byte(nil), raw[prefixLen:len(body)]...), nil
}

// EncodeSS58 encodes a 32 byte account id for the given network prefix.
func EncodeSS58(prefix uint16, accountID []byte) (string, error) {
	if len(accountID) != ss58AccountLen {
		return "", fmt.Errorf("account id must be %d bytes, got %d", ss58AccountLen, len(accountID))
	}
	if prefix > ss58MaxPrefix {
		return "", fmt.Errorf("prefix %d out of range", prefix)
	}

	var body []byte
	if prefix < 64 {
		body = append(body, byte(prefix))
	} else {
		first := byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000
		second := byte(prefix>>8) | byte(prefix&0b11)<<6
		body = append(body, first, second)
	}
	body = append(body, accountID...)
	sum := ss58Checksum(body)
	return base58.Encode(append(body, sum[:ss58ChecksumLen]...)), nil
}

func ss58Checksum(body []byte) [blake2b.Size]byte {
	return blake2b.Sum512(append(append([]byte(nil), ss58Context...), body...))
}
