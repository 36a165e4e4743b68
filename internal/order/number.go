package order

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strconv"
	"time"

	"github.com/barelle/storefront/internal/pricing"
)

// NumberGenerator produces human-facing order numbers.
type NumberGenerator interface {
	Next(class pricing.Classification) (string, error)
}

// RandomNumbers builds numbers like ORD-1718000000000-K3J9QZ: a prefix by
// customer type, the unix time in milliseconds and six random base32
// characters. Collisions are still possible and are retried by the caller.
type RandomNumbers struct {
	Now func() time.Time
}

func (g RandomNumbers) Next(class pricing.Classification) (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes for order number: %w", err)
	}

	prefix := "ORD"
	if class == pricing.B2B {
		prefix = "B2B"
	}
	suffix := base32.StdEncoding.EncodeToString(buf)[:6]
	return prefix + "-" + strconv.FormatInt(now().UnixMilli(), 10) + "-" + suffix, nil
}
