package entity

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm/schema"
)

// =============================================================================
// Quote模型Schema缓存
// 报价聚合查询需要拿到Quote模型解析后的schema（表名、字段映射），
// 解析结果进程内只做一次，用双重检查锁定缓存，并记录命中统计供诊断接口使用
// =============================================================================

var quoteSchemaCache struct {
	mu         sync.Mutex
	cached     atomic.Pointer[schema.Schema]
	hits       atomic.Int64
	misses     atomic.Int64
	parseNanos atomic.Int64
}

// QuoteSchema 返回Quote模型的schema，首次调用时解析并缓存
// 首次填充之后走无锁读路径，缓存引用一旦写入不再变更
func QuoteSchema() (*schema.Schema, error) {
	if s := quoteSchemaCache.cached.Load(); s != nil {
		quoteSchemaCache.hits.Add(1)
		return s, nil
	}

	quoteSchemaCache.misses.Add(1)

	quoteSchemaCache.mu.Lock()
	defer quoteSchemaCache.mu.Unlock()

	// 双重检查：其他goroutine可能已经完成解析
	// 本次调用已计为未命中，这里不再重复计数
	if s := quoteSchemaCache.cached.Load(); s != nil {
		return s, nil
	}

	start := time.Now()
	s, err := schema.Parse(&Quote{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		return nil, fmt.Errorf("解析Quote模型schema失败: %w", err)
	}
	quoteSchemaCache.parseNanos.Store(time.Since(start).Nanoseconds())
	quoteSchemaCache.cached.Store(s)

	return s, nil
}

// QuoteSchemaStats Quote模型缓存统计
type QuoteSchemaStats struct {
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	TotalRequests    int64   `json:"total_requests"`
	HitRatePercent   float64 `json:"hit_rate_percent"`
	ParseTimeSeconds float64 `json:"parse_time_seconds"`
	IsCached         bool    `json:"is_cached"`
}

// GetQuoteSchemaStats 获取缓存统计信息
func GetQuoteSchemaStats() QuoteSchemaStats {
	hits := quoteSchemaCache.hits.Load()
	misses := quoteSchemaCache.misses.Load()
	total := hits + misses

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return QuoteSchemaStats{
		CacheHits:        hits,
		CacheMisses:      misses,
		TotalRequests:    total,
		HitRatePercent:   hitRate,
		ParseTimeSeconds: float64(quoteSchemaCache.parseNanos.Load()) / float64(time.Second),
		IsCached:         quoteSchemaCache.cached.Load() != nil,
	}
}

// ResetQuoteSchemaCache 重置缓存与统计信息（用于测试隔离）
// 清空缓存引用，下一次访问必然未命中
func ResetQuoteSchemaCache() {
	quoteSchemaCache.mu.Lock()
	defer quoteSchemaCache.mu.Unlock()

	quoteSchemaCache.cached.Store(nil)
	quoteSchemaCache.hits.Store(0)
	quoteSchemaCache.misses.Store(0)
	quoteSchemaCache.parseNanos.Store(0)
}
