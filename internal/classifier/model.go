// Package classifier loads the diagnostic model once at startup and exposes it as a
// domain.Classifier, optionally behind a remote model server and a prediction cache.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heart-intake-server/internal/domain"
)

// Model kinds
const (
	KindLinear   = "linear"
	KindLogistic = "logistic"
)

// Artifact is the on-disk form of an exported, standardized linear model.
type Artifact struct {
	Name         string    `json:"name" yaml:"name"`
	Kind         string    `json:"kind" yaml:"kind"`
	Features     []string  `json:"features" yaml:"features"`
	Mean         []float64 `json:"mean" yaml:"mean"`
	Scale        []float64 `json:"scale" yaml:"scale"`
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	Intercept    float64   `json:"intercept" yaml:"intercept"`
	Threshold    *float64  `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// Model is an immutable classifier built from an Artifact.
type Model struct {
	name         string
	kind         string
	mean         domain.FeatureVector
	scale        domain.FeatureVector
	coefficients domain.FeatureVector
	intercept    float64
	threshold    float64
}

// LoadModel reads an artifact from path. Files ending in .yaml or .yml are decoded
// as YAML, everything else as JSON.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}

	var artifact Artifact
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &artifact)
	default:
		err = json.Unmarshal(data, &artifact)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding model artifact %s: %w", path, err)
	}

	if artifact.Name == "" {
		artifact.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return NewModel(artifact)
}

// NewModel validates an artifact and builds the model.
func NewModel(a Artifact) (*Model, error) {
	kind := strings.ToLower(a.Kind)
	threshold := 0.0
	switch kind {
	case KindLinear:
	case KindLogistic:
		threshold = 0.5
	default:
		return nil, fmt.Errorf("unsupported model kind %q", a.Kind)
	}
	if a.Threshold != nil {
		threshold = *a.Threshold
	}

	if len(a.Features) != domain.FeatureCount {
		return nil, fmt.Errorf("model expects %d features, artifact lists %d", domain.FeatureCount, len(a.Features))
	}
	for i, name := range a.Features {
		if name != domain.FeatureNames[i] {
			return nil, fmt.Errorf("feature %d is %q, expected %q", i, name, domain.FeatureNames[i])
		}
	}

	m := &Model{
		name:      a.Name,
		kind:      kind,
		intercept: a.Intercept,
		threshold: threshold,
	}
	if err := fill(&m.coefficients, a.Coefficients, "coefficients", 0); err != nil {
		return nil, err
	}
	if err := fill(&m.mean, a.Mean, "mean", 0); err != nil {
		return nil, err
	}
	if err := fill(&m.scale, a.Scale, "scale", 1); err != nil {
		return nil, err
	}
	for i, s := range m.scale {
		if s == 0 {
			return nil, fmt.Errorf("scale of feature %q is zero", domain.FeatureNames[i])
		}
	}

	return m, nil
}

// fill copies values into dst. An absent slice leaves every entry at def.
func fill(dst *domain.FeatureVector, values []float64, field string, def float64) error {
	if len(values) == 0 {
		for i := range dst {
			dst[i] = def
		}
		return nil
	}
	if len(values) != domain.FeatureCount {
		return fmt.Errorf("%s has %d values, expected %d", field, len(values), domain.FeatureCount)
	}
	copy(dst[:], values)
	return nil
}

// Score returns the decision value for features: the standardized linear
// combination for linear models, its sigmoid for logistic ones.
func (m *Model) Score(features domain.FeatureVector) float64 {
	score := m.intercept
	for i, x := range features {
		score += m.coefficients[i] * (x - m.mean[i]) / m.scale[i]
	}
	if m.kind == KindLogistic {
		return 1 / (1 + math.Exp(-score))
	}
	return score
}

// Predict labels features as OutcomePositive or OutcomeNegative.
func (m *Model) Predict(ctx context.Context, features domain.FeatureVector) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for i, x := range features {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("feature %q is not a finite number", domain.FeatureNames[i])
		}
	}

	score := m.Score(features)
	if m.kind == KindLogistic {
		if score >= m.threshold {
			return domain.OutcomePositive, nil
		}
		return domain.OutcomeNegative, nil
	}
	if score > m.threshold {
		return domain.OutcomePositive, nil
	}
	return domain.OutcomeNegative, nil
}

// Name returns the artifact name.
func (m *Model) Name() string {
	return m.name
}
