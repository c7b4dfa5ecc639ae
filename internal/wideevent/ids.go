package wideevent

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const spanIDLen = 16

// RandomSource yields a random UUID. uuid.NewRandom is crypto/rand backed.
type RandomSource func() (uuid.UUID, error)

// newID returns a 32 character hex token from random, or a lower quality
// base-36 token when random is missing, fails or panics.
func newID(random RandomSource, now time.Time) (id string) {
	defer func() {
		if recover() != nil {
			id = fallbackID(now)
		}
	}()
	if random == nil {
		return fallbackID(now)
	}
	u, err := random()
	if err != nil {
		return fallbackID(now)
	}
	return strings.ReplaceAll(u.String(), "-", "")
}

func fallbackID(now time.Time) string {
	return strconv.FormatUint(rand.Uint64(), 36) + strconv.FormatInt(now.UnixMilli(), 36)
}

func newSpanID(random RandomSource, now time.Time) string {
	id := newID(random, now)
	if len(id) > spanIDLen {
		return id[:spanIDLen]
	}
	return id
}

// FormatTraceparent renders a W3C traceparent header value.
func FormatTraceparent(traceID, spanID string) string {
	return fmt.Sprintf("00-%s-%s-01", traceID, spanID)
}
