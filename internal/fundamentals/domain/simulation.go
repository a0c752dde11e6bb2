// Package domain 包含保险基础演示的计算单元：大数定律、风险池、资产负债表、保费计算与资本作用。
// 所有计算单元都是请求参数（以及可选随机种子）的纯函数，不持有任何共享状态。
package domain

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// MaxAmount 金额类参数上限
const MaxAmount = 1e12

// ErrInvalidParameter 参数校验失败
var ErrInvalidParameter = errors.New("invalid parameter")

// ValidationError 描述具体哪个参数不合法
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidParameter
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Module 计算单元名称
type Module string

const (
	ModuleLawOfLargeNumbers Module = "lln"
	ModuleRiskPooling       Module = "risk-pooling"
	ModuleBalanceSheet      Module = "balance-sheet"
	ModulePremium           Module = "premium"
	ModuleCapital           Module = "capital"
)

// Modules 返回全部计算单元，顺序与仪表盘标签页一致
func Modules() []Module {
	return []Module{
		ModuleLawOfLargeNumbers,
		ModuleRiskPooling,
		ModuleBalanceSheet,
		ModulePremium,
		ModuleCapital,
	}
}

// Title 返回计算单元的展示标题
func (m Module) Title() string {
	switch m {
	case ModuleLawOfLargeNumbers:
		return "Law of Large Numbers"
	case ModuleRiskPooling:
		return "Risk Pooling"
	case ModuleBalanceSheet:
		return "Balance Sheet"
	case ModulePremium:
		return "Premium Calculation"
	case ModuleCapital:
		return "Role of Capital"
	default:
		return string(m)
	}
}

// ParseModule 解析计算单元名称
func ParseModule(s string) (Module, error) {
	for _, m := range Modules() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", invalid("module", "unknown module %q", s)
}

// Point 序列中的一个点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bin 直方图中的一个区间 [Lower, Upper)
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// LineItem 命名金额
type LineItem struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Seeded 带随机种子的请求
type Seeded interface {
	SeedValue() *uint64
}

// resolveSeed 未指定种子时生成一个新种子，使结果可复现
func resolveSeed(seed *uint64) uint64 {
	if seed != nil {
		return *seed
	}
	return rand.Uint64()
}

// newRand 由种子构造确定性随机源
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func checkProbability(field string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return invalid(field, "must be within [0, 1], got %v", p)
	}
	return nil
}

func checkNonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return invalid(field, "must be a non-negative number, got %v", v)
	}
	return nil
}

func checkRange(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return invalid(field, "must be within [%v, %v], got %v", lo, hi, v)
	}
	return nil
}

// checkFinite 计算结果出现溢出时，按导致溢出的参数报错
func checkFinite(field string, values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(field, "result exceeds the representable range")
		}
	}
	return nil
}

func checkDecimalNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return invalid(field, "must be non-negative, got %s", d.String())
	}
	return nil
}

// histogram 将样本分为等宽区间；所有样本相同时返回单个区间
func histogram(values []float64, bins int) []Bin {
	if len(values) == 0 || bins <= 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return []Bin{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lower: lo + float64(i)*width, Upper: lo + float64(i+1)*width}
	}
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

func seedPtr(seed uint64) *uint64 {
	return &seed
}
