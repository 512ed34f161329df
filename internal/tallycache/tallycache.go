package tallycache

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
)

// Gate is a short-TTL cache over tally results. A repeat tally-only query
// pinned to a previously returned as-of timestamp is answered from the
// cache instead of the database, so high-frequency pay-per-use checks stop
// costing a DB round trip each.
type Gate struct {
	logger *logger.Logger
	cache  *gocache.Cache

	hits   atomic.Int64
	misses atomic.Int64
	saves  atomic.Int64
}

func NewGate(ttl time.Duration, logger *logger.Logger) *Gate {
	return &Gate{
		logger: logger,
		cache:  gocache.New(ttl, 10*time.Minute),
	}
}

// Eligible reports whether a query can be answered from the cache at all:
// only tally-only queries pinned to an explicit as-of are stable enough to
// replay.
func Eligible(q models.TallyQuery) bool {
	return q.TallyOnly && q.AsOf != nil
}

// Key derives the cache key for a query. Every selector that changes the
// result participates.
func Key(q models.TallyQuery) string {
	since := ""
	if q.Since != nil {
		since = q.Since.UTC().Format(time.RFC3339Nano)
	}
	asOf := ""
	if q.AsOf != nil {
		asOf = q.AsOf.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s",
		q.FromAddress, q.ToAddress, q.MaxMostRecent, since, asOf,
		strconv.FormatBool(q.TallyOnly), strconv.FormatBool(q.IncludePrivate))
}

// Check returns the cached result for an eligible query, if any.
func (g *Gate) Check(q models.TallyQuery) (*models.TallyResult, bool) {
	if !Eligible(q) {
		return nil, false
	}
	value, found := g.cache.Get(Key(q))
	if !found {
		g.misses.Add(1)
		return nil, false
	}
	result, ok := value.(*models.TallyResult)
	if !ok {
		g.misses.Add(1)
		return nil, false
	}
	g.hits.Add(1)
	return result, true
}

// Save stores a fresh result under both the query's own key and, when the
// query had no explicit as-of, the key a follow-up query pinned to the
// result's as-of will use.
func (g *Gate) Save(q models.TallyQuery, result *models.TallyResult) {
	if !q.TallyOnly {
		return
	}
	if q.AsOf == nil {
		asOf, err := time.Parse(time.RFC3339Nano, result.AsOf)
		if err != nil {
			g.logger.Warn("Tally result carries unparseable as-of: ", result.AsOf)
			return
		}
		q.AsOf = &asOf
	}
	g.cache.SetDefault(Key(q), result)
	g.saves.Add(1)
}

func (g *Gate) Metrics() models.CacheMetrics {
	return models.CacheMetrics{
		Hits:   g.hits.Load(),
		Misses: g.misses.Load(),
		Saves:  g.saves.Load(),
	}
}
