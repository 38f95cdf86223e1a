package sim

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// UniformSource 产生 (0, 1) 开区间内的均匀分布随机数，永不返回 0 或 1。
// 实现不要求并发安全，每个 goroutine 应持有独立的实例。
type UniformSource interface {
	Float64() float64
}

// SourceFactory 为第 worker 个并发模拟单元创建独立的随机流.
type SourceFactory func(worker int) UniformSource

// golden 用于派生互不相关的 PCG 种子.
const golden = 0x9E3779B97F4A7C15

// seededSource 基于 PCG 的可复现随机流.
type seededSource struct {
	r *rand.Rand
}

// NewSeededSource 创建一个固定种子的随机流，相同种子产生相同序列.
func NewSeededSource(seed uint64) UniformSource {
	return &seededSource{r: rand.New(rand.NewPCG(seed, seed^golden))}
}

func (s *seededSource) Float64() float64 {
	for {
		// rand.Float64 取值 [0, 1)，剔除 0.
		if u := s.r.Float64(); u > 0 {
			return u
		}
	}
}

// cryptoSource 使用 crypto/rand，不可复现.
type cryptoSource struct{}

// NewCryptoSource 创建基于 crypto/rand 的随机流.
func NewCryptoSource() UniformSource {
	return cryptoSource{}
}

func (cryptoSource) Float64() float64 {
	var b [8]byte
	_, _ = crand.Read(b[:])
	// 取高 53 位并偏移半个 ulp，结果严格落在 (0, 1).
	return (float64(binary.LittleEndian.Uint64(b[:])>>11) + 0.5) / (1 << 53)
}

// sequenceSource 循环回放一组固定取值，供测试注入.
type sequenceSource struct {
	values []float64
	next   int
}

// NewSequenceSource 创建按顺序循环返回 values 的随机流.
// values 为空时 panic.
func NewSequenceSource(values ...float64) UniformSource {
	if len(values) == 0 {
		panic("sim: NewSequenceSource requires at least one value")
	}
	return &sequenceSource{values: append([]float64(nil), values...)}
}

func (s *sequenceSource) Float64() float64 {
	u := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	return u
}

// SeededFactory 返回按 worker 序号派生种子的工厂，整体结果只取决于 seed 与 worker 数.
func SeededFactory(seed uint64) SourceFactory {
	return func(worker int) UniformSource {
		return NewSeededSource(seed + uint64(worker)*golden)
	}
}

// CryptoFactory 返回为每个 worker 提供 crypto/rand 随机流的工厂.
func CryptoFactory() SourceFactory {
	return func(int) UniformSource {
		return NewCryptoSource()
	}
}
