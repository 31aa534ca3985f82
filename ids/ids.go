// Package ids generates identifiers for threads and messages.
//
// The default generator produces UUIDv7 values, which embed a millisecond
// timestamp and 74 random bits, so ids stay roughly time-ordered without
// depending on clock granularity for uniqueness. ULID is offered for
// deployments that prefer Crockford base32 ids, and Legacy reproduces the
// "{unixMillis}-{9 base36 chars}" format used by earlier writers of the same
// key space.
package ids

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces unique identifiers.
type Generator interface {
	NewID() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() string

// NewID calls f.
func (f GeneratorFunc) NewID() string {
	return f()
}

// Generator kinds accepted by Parse.
const (
	KindUUID   = "uuid"
	KindULID   = "ulid"
	KindLegacy = "legacy"
)

// UUIDv7 returns a generator of RFC 9562 version 7 UUIDs.
func UUIDv7() Generator {
	return GeneratorFunc(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})
}

// ULID returns a generator of monotonic ULIDs. Ids created within the same
// millisecond are strictly increasing.
func ULID() Generator {
	return &ulidGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

type ulidGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func (g *ulidGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// legacySuffixLen is the length of the random part of a legacy id.
const legacySuffixLen = 9

// Legacy returns a generator of "{unixMillis}-{suffix}" ids where suffix is
// nine random base36 characters. Uniqueness is probabilistic; prefer UUIDv7
// for new deployments.
func Legacy() Generator {
	return legacyWithClock(time.Now)
}

func legacyWithClock(now func() time.Time) Generator {
	return GeneratorFunc(func() string {
		var sb strings.Builder
		sb.WriteString(strconv.FormatInt(now().UnixMilli(), 10))
		sb.WriteByte('-')
		sb.WriteString(base36Suffix(rand.Reader, legacySuffixLen))
		return sb.String()
	})
}

// base36Suffix draws n uniformly distributed base36 characters from r.
// Bytes at or above the largest multiple of 36 are rejected.
func base36Suffix(r io.Reader, n int) string {
	const limit = 256 - 256%len(base36)

	out := make([]byte, 0, n)
	var buf [16]byte
	for len(out) < n {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			panic(fmt.Sprintf("ids: read random bytes: %v", err))
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, base36[int(b)%len(base36)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// Parse returns the generator named by kind. An empty kind selects UUIDv7.
func Parse(kind string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindUUID:
		return UUIDv7(), nil
	case KindULID:
		return ULID(), nil
	case KindLegacy:
		return Legacy(), nil
	default:
		return nil, fmt.Errorf("ids: unknown generator %q", kind)
	}
}
