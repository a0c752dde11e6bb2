package domain

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// MaxLawOfLargeNumbersSampleSize 单次演示的样本量上限
const MaxLawOfLargeNumbersSampleSize = 5_000_000

// lawOfLargeNumbersCheckpoints 仪表盘展示的样本量刻度（驾驶员人数）
var lawOfLargeNumbersCheckpoints = []int{10, 50, 100, 500, 1000, 5000, 10000, 50000}

// LawOfLargeNumbersRequest 大数定律演示参数
type LawOfLargeNumbersRequest struct {
	// 真实事故概率 p
	Probability float64 `json:"probability"`
	// 最大样本量 N
	MaxSampleSize int     `json:"max_sample_size"`
	Seed          *uint64 `json:"seed,omitempty"`
}

// DefaultLawOfLargeNumbersRequest 仪表盘默认参数
func DefaultLawOfLargeNumbersRequest() LawOfLargeNumbersRequest {
	return LawOfLargeNumbersRequest{Probability: 0.05, MaxSampleSize: 50000}
}

func (r LawOfLargeNumbersRequest) SeedValue() *uint64 { return r.Seed }

// Validate 校验参数
func (r LawOfLargeNumbersRequest) Validate() error {
	if err := checkProbability("probability", r.Probability); err != nil {
		return err
	}
	if r.MaxSampleSize < 1 {
		return invalid("max_sample_size", "must be at least 1, got %d", r.MaxSampleSize)
	}
	if r.MaxSampleSize > MaxLawOfLargeNumbersSampleSize {
		return invalid("max_sample_size", "must not exceed %d, got %d", MaxLawOfLargeNumbersSampleSize, r.MaxSampleSize)
	}
	return nil
}

// Checkpoint 某一样本量下的观测结果
type Checkpoint struct {
	SampleSize int     `json:"sample_size"`
	Observed   float64 `json:"observed"`
	Error      float64 `json:"error"`
}

// LawOfLargeNumbersResult 大数定律演示结果
type LawOfLargeNumbersResult struct {
	Probability float64 `json:"probability"`
	Seed        uint64  `json:"seed"`
	// RunningMean 第 k 次抽样后的样本均值，k = 1..N
	RunningMean []Point      `json:"running_mean"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// SmallSample 最小样本量刻度的结果
func (r *LawOfLargeNumbersResult) SmallSample() Checkpoint {
	return r.Checkpoints[0]
}

// LargeSample 最大样本量刻度的结果
func (r *LawOfLargeNumbersResult) LargeSample() Checkpoint {
	return r.Checkpoints[len(r.Checkpoints)-1]
}

// SimulateLawOfLargeNumbers 抽取 N 个 Bernoulli(p) 结果并计算逐次样本均值
func SimulateLawOfLargeNumbers(req LawOfLargeNumbersRequest) (*LawOfLargeNumbersResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	seed := resolveSeed(req.Seed)
	r := newRand(seed)

	checkpoints := checkpointSizes(req.MaxSampleSize)
	result := &LawOfLargeNumbersResult{
		Probability: req.Probability,
		Seed:        seed,
		RunningMean: make([]Point, req.MaxSampleSize),
		Checkpoints: make([]Checkpoint, 0, len(checkpoints)),
	}

	hits := 0
	next := 0
	for k := 1; k <= req.MaxSampleSize; k++ {
		if r.Float64() < req.Probability {
			hits++
		}
		mean := float64(hits) / float64(k)
		result.RunningMean[k-1] = Point{X: float64(k), Y: mean}

		if next < len(checkpoints) && checkpoints[next] == k {
			result.Checkpoints = append(result.Checkpoints, Checkpoint{
				SampleSize: k,
				Observed:   mean,
				Error:      math.Abs(mean - req.Probability),
			})
			next++
		}
	}

	return result, nil
}

// checkpointSizes 返回不超过 n 的展示刻度，并保证包含 n 本身
func checkpointSizes(n int) []int {
	out := make([]int, 0, len(lawOfLargeNumbersCheckpoints)+1)
	for _, c := range lawOfLargeNumbersCheckpoints {
		if c <= n {
			out = append(out, c)
		}
	}
	if len(out) == 0 || out[len(out)-1] != n {
		out = append(out, n)
	}
	return out
}

// CheckpointVariance 多次重复实验下，某一样本量的样本均值方差
type CheckpointVariance struct {
	SampleSize  int     `json:"sample_size"`
	Variance    float64 `json:"variance"`
	Theoretical float64 `json:"theoretical"`
}

// RunningMeanVariance 重复 trials 次实验，度量各刻度处样本均值的跨实验方差。
// 理论值为 p(1-p)/k。
func RunningMeanVariance(p float64, trials int, sampleSizes []int, seed uint64) ([]CheckpointVariance, error) {
	if err := checkProbability("probability", p); err != nil {
		return nil, err
	}
	if trials < 2 {
		return nil, invalid("trials", "must be at least 2, got %d", trials)
	}
	if len(sampleSizes) == 0 {
		return nil, invalid("sample_sizes", "must not be empty")
	}

	sizes := append([]int(nil), sampleSizes...)
	sort.Ints(sizes)
	if sizes[0] < 1 {
		return nil, invalid("sample_sizes", "must be positive, got %d", sizes[0])
	}
	maxSize := sizes[len(sizes)-1]
	if maxSize > MaxLawOfLargeNumbersSampleSize {
		return nil, invalid("sample_sizes", "must not exceed %d", MaxLawOfLargeNumbersSampleSize)
	}

	r := newRand(seed)
	means := make([]stats.Float64Data, len(sizes))
	for i := range means {
		means[i] = make(stats.Float64Data, trials)
	}

	for t := 0; t < trials; t++ {
		hits, next := 0, 0
		for k := 1; k <= maxSize && next < len(sizes); k++ {
			if r.Float64() < p {
				hits++
			}
			for next < len(sizes) && sizes[next] == k {
				means[next][t] = float64(hits) / float64(k)
				next++
			}
		}
	}

	out := make([]CheckpointVariance, len(sizes))
	for i, size := range sizes {
		v, err := stats.PopulationVariance(means[i])
		if err != nil {
			return nil, err
		}
		out[i] = CheckpointVariance{
			SampleSize:  size,
			Variance:    v,
			Theoretical: p * (1 - p) / float64(size),
		}
	}
	return out, nil
}
