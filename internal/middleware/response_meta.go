package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
)

// responseMeta collects what handlers learn about a request that belongs in the envelope meta.
type responseMeta struct {
	start    time.Time
	cacheHit *bool
}

// WithResponseMeta starts the clock for processing_time_ms and makes SetCacheHit available.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now()})
		c.Next()
	}
}

// SetCacheHit records whether the response body came from the report cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if meta := metaFrom(c); meta != nil {
		meta.cacheHit = &hit
		return
	}
	c.Set(responseMetaKey, &responseMeta{cacheHit: &hit})
}

// ExtractMeta renders the collected metadata. It returns nil when nothing was collected.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaFrom(c)
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, 2)
	if !meta.start.IsZero() {
		out["processing_time_ms"] = time.Since(meta.start).Milliseconds()
	}
	if meta.cacheHit != nil {
		out[cacheHitKey] = *meta.cacheHit
	}
	return out
}

func metaFrom(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	value, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := value.(*responseMeta)
	return meta
}
