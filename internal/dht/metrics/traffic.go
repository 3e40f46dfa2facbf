package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// TrafficStats 流量统计快照
type TrafficStats struct {
	TotalIn  int64   // 总入站字节
	TotalOut int64   // 总出站字节
	RateIn   float64 // 入站速率（字节/秒）
	RateOut  float64 // 出站速率（字节/秒）
}

// Traffic 消息流量计数器
//
// 跟踪本地节点按消息类型发送和接收的字节数，计数使用原子操作。
type Traffic struct {
	clock clock.Clock

	totalIn  atomic.Int64
	totalOut atomic.Int64

	totalInRate  *RateMeter
	totalOutRate *RateMeter

	kindMu  sync.RWMutex
	kindIn  map[string]*atomic.Int64
	kindOut map[string]*atomic.Int64
}

// NewTraffic 创建流量计数器
func NewTraffic(clk clock.Clock) *Traffic {
	return &Traffic{
		clock:        clk,
		totalInRate:  NewRateMeter(clk),
		totalOutRate: NewRateMeter(clk),
		kindIn:       make(map[string]*atomic.Int64),
		kindOut:      make(map[string]*atomic.Int64),
	}
}

// LogSent 记录出站消息
func (t *Traffic) LogSent(kind string, size int64) {
	if t == nil {
		return
	}
	t.totalOut.Add(size)
	t.totalOutRate.Add(size)
	t.counter(t.kindOut, kind).Add(size)
}

// LogRecv 记录入站消息
func (t *Traffic) LogRecv(kind string, size int64) {
	if t == nil {
		return
	}
	t.totalIn.Add(size)
	t.totalInRate.Add(size)
	t.counter(t.kindIn, kind).Add(size)
}

func (t *Traffic) counter(m map[string]*atomic.Int64, kind string) *atomic.Int64 {
	t.kindMu.RLock()
	c := m[kind]
	t.kindMu.RUnlock()
	if c != nil {
		return c
	}

	t.kindMu.Lock()
	defer t.kindMu.Unlock()
	if c = m[kind]; c == nil {
		c = &atomic.Int64{}
		m[kind] = c
	}
	return c
}

// Totals 返回总流量统计
func (t *Traffic) Totals() TrafficStats {
	return TrafficStats{
		TotalIn:  t.totalIn.Load(),
		TotalOut: t.totalOut.Load(),
		RateIn:   t.totalInRate.Rate(),
		RateOut:  t.totalOutRate.Rate(),
	}
}

// ForKind 返回某类消息的流量（不含速率）
func (t *Traffic) ForKind(kind string) TrafficStats {
	t.kindMu.RLock()
	in, out := t.kindIn[kind], t.kindOut[kind]
	t.kindMu.RUnlock()

	var s TrafficStats
	if in != nil {
		s.TotalIn = in.Load()
	}
	if out != nil {
		s.TotalOut = out.Load()
	}
	return s
}

// ============================================================================
// RateMeter - 速率计算器
// ============================================================================

// rateWindow 滑动窗口桶数（每桶 1 秒）
const rateWindow = 60

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 60 个 1 秒桶计算最近 60 秒的平均速率。
type RateMeter struct {
	clock clock.Clock

	mu       sync.Mutex
	buckets  [rateWindow]int64
	lastIdx  int
	lastTime time.Time
}

// NewRateMeter 创建速率计算器
func NewRateMeter(clk clock.Clock) *RateMeter {
	return &RateMeter{
		clock:    clk,
		lastTime: clk.Now(),
	}
}

// Add 添加字节数到当前桶
func (r *RateMeter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advanceLocked()
	r.buckets[r.lastIdx] += n
}

// Rate 返回平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advanceLocked()
	var total int64
	for _, v := range r.buckets {
		total += v
	}
	return float64(total) / rateWindow
}

// advanceLocked 按经过的秒数滚动桶，过期桶清零
func (r *RateMeter) advanceLocked() {
	now := r.clock.Now()
	seconds := int(now.Sub(r.lastTime) / time.Second)
	if seconds <= 0 {
		return
	}

	if seconds >= rateWindow {
		r.buckets = [rateWindow]int64{}
		r.lastIdx = 0
	} else {
		for i := 0; i < seconds; i++ {
			r.lastIdx = (r.lastIdx + 1) % rateWindow
			r.buckets[r.lastIdx] = 0
		}
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}
