package cohort

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/tidepool-org/hydration/config"
	"github.com/tidepool-org/hydration/metrics"
	"github.com/tidepool-org/hydration/patients"
)

type cacheEntry struct {
	dashboard Dashboard
	expiry    time.Time
}

// Cache holds caregiver dashboards for a short time. Entries of a caregiver are
// dropped as soon as one of their patients is updated.
type Cache struct {
	expiration time.Duration
	clock      config.Clock
	lru        *simplelru.LRU
	mu         *sync.Mutex
}

var _ patients.Listener = &Cache{}

func NewCache(cfg *config.Config, clock config.Clock) (*Cache, error) {
	var onEvict simplelru.EvictCallback
	lru, err := simplelru.NewLRU(cfg.CohortCacheSize, onEvict)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = config.NewClock()
	}

	return &Cache{
		expiration: cfg.CohortCacheTTL,
		clock:      clock,
		lru:        lru,
		mu:         &sync.Mutex{},
	}, nil
}

func (c *Cache) Get(caregiverId string) (*Dashboard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.lru.Get(caregiverId); ok {
		entry := e.(cacheEntry)
		if c.clock().After(entry.expiry) {
			c.lru.Remove(caregiverId)
			metrics.CohortCache.WithLabelValues("expired").Inc()
			return nil, false
		}
		metrics.CohortCache.WithLabelValues("hit").Inc()
		dashboard := entry.dashboard
		return &dashboard, true
	}

	metrics.CohortCache.WithLabelValues("miss").Inc()
	return nil, false
}

func (c *Cache) Add(caregiverId string, dashboard Dashboard) {
	if c.expiration <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.lru.Add(caregiverId, cacheEntry{
		dashboard: dashboard,
		expiry:    c.clock().Add(c.expiration),
	})
}

func (c *Cache) Invalidate(caregiverId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(caregiverId)
}

func (c *Cache) PatientUpdated(patient patients.Patient) {
	c.Invalidate(patient.CaregiverId)
}
