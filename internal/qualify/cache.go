package qualify

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/solar-router/internal/model"
	"github.com/sells-group/solar-router/internal/scorer"
)

// recommendationCache memoizes recommendations by (zip, bill, roof type,
// shading). Concurrent misses for one key share a single computation.
// Entries are evicted oldest first once maxEntries is reached.
type recommendationCache struct {
	group singleflight.Group

	mu         sync.RWMutex
	entries    map[string]*model.SystemRecommendation
	order      []string
	maxEntries int

	hits, misses int64
}

func newRecommendationCache(maxEntries int) *recommendationCache {
	return &recommendationCache{
		entries:    make(map[string]*model.SystemRecommendation),
		maxEntries: maxEntries,
	}
}

// cacheKey keeps full float precision so inputs that size differently never
// share an entry.
func cacheKey(p model.CustomerProfile) string {
	return strings.Join([]string{
		strings.TrimSpace(p.ZipCode),
		strconv.FormatFloat(p.MonthlyBill, 'g', -1, 64),
		scorer.NormalizeRoofType(p.RoofType),
		strconv.FormatFloat(p.Shading(), 'g', -1, 64),
	}, "|")
}

// get returns the cached recommendation for key, computing it with fn on a
// miss. Callers receive their own copy.
func (c *recommendationCache) get(key string, fn func() (*model.SystemRecommendation, error)) (*model.SystemRecommendation, error) {
	if c.maxEntries <= 0 {
		return fn()
	}

	c.mu.RLock()
	rec, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return cloneRecommendation(rec), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		rec, err := fn()
		if err != nil {
			return nil, err
		}
		c.put(key, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneRecommendation(v.(*model.SystemRecommendation)), nil
}

func (c *recommendationCache) put(key string, rec *model.SystemRecommendation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.misses++
	if _, ok := c.entries[key]; ok {
		return
	}
	for len(c.order) >= c.maxEntries {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.entries[key] = rec
	c.order = append(c.order, key)
}

// stats returns the number of hits, computed misses and cached entries.
func (c *recommendationCache) stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.entries)
}

func cloneRecommendation(r *model.SystemRecommendation) *model.SystemRecommendation {
	out := *r
	if r.PaybackYears != nil {
		v := *r.PaybackYears
		out.PaybackYears = &v
	}
	out.IncentivesApplied = slices.Clone(r.IncentivesApplied)
	out.Financing = slices.Clone(r.Financing)
	return &out
}
