package csrf

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// newToken reads n bytes from src and returns them hex encoded.
func newToken(src io.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomness, err)
	}
	return hex.EncodeToString(b), nil
}

// sanitize drops ASCII control bytes and every byte above 0x7f. The value is
// only ever compared, so no escaping is applied.
func sanitize(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c >= 0x7f {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// sameHost reports whether the host of originOrRef equals allowedHost,
// ignoring case. Port is part of the comparison.
func sameHost(originOrRef, allowedHost string) bool {
	u, err := url.Parse(originOrRef)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, allowedHost)
}
