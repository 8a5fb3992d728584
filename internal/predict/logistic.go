package predict

import (
	"math"
	"time"
)

// FitOptions はロジスティック回帰の学習パラメータ。
type FitOptions struct {
	Iterations   int
	LearningRate float64
	L2           float64
}

// DefaultFitOptions は既定の学習パラメータを返す。
func DefaultFitOptions() FitOptions {
	return FitOptions{Iterations: 1000, LearningRate: 0.1, L2: 0.01}
}

// Model はユーザー単位の学習済みロジスティック回帰モデル。
// JSONでそのまま保存する。
type Model struct {
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Samples   int       `json:"samples"`
	TrainedAt time.Time `json:"trained_at"`
}

// Fit はL2正則化付きロジスティック回帰をバッチ勾配降下法で学習する。
// 重みは0から始めるため、同じ入力に対して結果は常に同じになる。
func Fit(samples []Sample, opts FitOptions) *Model {
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultFitOptions().Iterations
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultFitOptions().LearningRate
	}

	m := &Model{Weights: make([]float64, FeatureCount), Samples: len(samples)}
	if len(samples) == 0 {
		return m
	}

	n := float64(len(samples))
	grad := make([]float64, FeatureCount)
	for iter := 0; iter < opts.Iterations; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0

		for _, s := range samples {
			diff := m.score(s.Features) - s.Label
			for j, v := range s.Features {
				grad[j] += diff * v
			}
			gradBias += diff
		}

		for j := range m.Weights {
			m.Weights[j] -= opts.LearningRate * (grad[j]/n + opts.L2*m.Weights[j])
		}
		m.Bias -= opts.LearningRate * gradBias / n
	}
	return m
}

// Probability は特徴量ベクトルに対する陽性確率を返す。
func (m *Model) Probability(x []float64) float64 {
	return m.score(x)
}

// Accuracy は閾値0.5で分類したときの正解率を返す。サンプルが空なら0。
func (m *Model) Accuracy(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	hit := 0
	for _, s := range samples {
		if (m.score(s.Features) >= 0.5) == (s.Label >= 0.5) {
			hit++
		}
	}
	return float64(hit) / float64(len(samples))
}

func (m *Model) score(x []float64) float64 {
	z := m.Bias
	for j, v := range x {
		if j < len(m.Weights) {
			z += m.Weights[j] * v
		}
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
