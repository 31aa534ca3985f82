package ids

import (
	"bytes"
	"crypto/rand"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7(t *testing.T) {
	id := UUIDv7().NewID()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestULIDMonotonic(t *testing.T) {
	g := ULID()

	prev := g.NewID()
	for i := 0; i < 100; i++ {
		next := g.NewID()
		_, err := ulid.Parse(next)
		require.NoError(t, err)
		assert.Greater(t, next, prev)
		prev = next
	}
}

var legacyPattern = regexp.MustCompile(`^(\d+)-([0-9a-z]{9})$`)

func TestLegacyFormat(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	id := legacyWithClock(func() time.Time { return fixed }).NewID()

	m := legacyPattern.FindStringSubmatch(id)
	require.NotNil(t, m, "unexpected id %q", id)
	assert.Equal(t, "1700000000123", m[1])

	assert.Regexp(t, legacyPattern, Legacy().NewID())
}

func TestBase36SuffixRejectsBiasedBytes(t *testing.T) {
	src := make([]byte, 32)
	copy(src, []byte{252, 253, 254, 255, 0, 35, 36, 251, 255, 71, 72, 1, 2, 3, 4, 5})

	got := base36Suffix(bytes.NewReader(src), 9)
	assert.Equal(t, "0z0zz0123", got)
}

func TestBase36SuffixCoversAlphabet(t *testing.T) {
	seen := make(map[rune]int)
	for i := 0; i < 2000; i++ {
		for _, c := range base36Suffix(rand.Reader, legacySuffixLen) {
			seen[c]++
		}
	}
	assert.Len(t, seen, len(base36))
}

func TestGeneratorsUniqueUnderConcurrency(t *testing.T) {
	for _, kind := range []string{KindUUID, KindULID, KindLegacy} {
		t.Run(kind, func(t *testing.T) {
			g, err := Parse(kind)
			require.NoError(t, err)

			const workers, perWorker = 8, 250
			var (
				mu   sync.Mutex
				seen = make(map[string]struct{}, workers*perWorker)
				wg   sync.WaitGroup
			)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					local := make([]string, 0, perWorker)
					for i := 0; i < perWorker; i++ {
						local = append(local, g.NewID())
					}
					mu.Lock()
					for _, id := range local {
						seen[id] = struct{}{}
					}
					mu.Unlock()
				}()
			}
			wg.Wait()
			assert.Len(t, seen, workers*perWorker)
		})
	}
}

func TestParse(t *testing.T) {
	g, err := Parse("")
	require.NoError(t, err)
	_, err = uuid.Parse(g.NewID())
	assert.NoError(t, err)

	g, err = Parse(" ULID ")
	require.NoError(t, err)
	_, err = ulid.Parse(g.NewID())
	assert.NoError(t, err)

	_, err = Parse("snowflake")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown generator")
}
