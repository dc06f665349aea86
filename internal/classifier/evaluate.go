package classifier

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/heart-intake-server/internal/domain"
)

// LabeledSample is one row of a reference dataset.
type LabeledSample struct {
	Features domain.FeatureVector
	Label    int
}

// Metrics summarizes classifier quality on a labeled dataset, positive class 1.
type Metrics struct {
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
	F1        float64 `json:"f1"`
}

// ReadSamplesCSV parses a dataset whose header names the 13 features followed by
// the label column.
func ReadSamplesCSV(r io.Reader) ([]LabeledSample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) != domain.FeatureCount+1 {
		return nil, fmt.Errorf("header has %d columns, expected %d", len(header), domain.FeatureCount+1)
	}
	for i, name := range domain.FeatureNames {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("column %d is %q, expected %q", i+1, header[i], name)
		}
	}

	var samples []LabeledSample
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		var sample LabeledSample
		for i := 0; i < domain.FeatureCount; i++ {
			sample.Features[i], err = strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[i], err)
			}
		}
		sample.Label, err = strconv.Atoi(strings.TrimSpace(record[domain.FeatureCount]))
		if err != nil {
			return nil, fmt.Errorf("line %d label: %w", line, err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// Evaluate scores c against samples.
func Evaluate(ctx context.Context, c domain.Classifier, samples []LabeledSample) (Metrics, error) {
	if len(samples) == 0 {
		return Metrics{}, errors.New("no samples to evaluate")
	}

	var tp, tn, fp, fn int
	for i, sample := range samples {
		predicted, err := c.Predict(ctx, sample.Features)
		if err != nil {
			return Metrics{}, fmt.Errorf("predicting sample %d: %w", i, err)
		}
		switch {
		case predicted == domain.OutcomePositive && sample.Label == domain.OutcomePositive:
			tp++
		case predicted == domain.OutcomePositive:
			fp++
		case sample.Label == domain.OutcomePositive:
			fn++
		default:
			tn++
		}
	}

	m := Metrics{
		Samples:   len(samples),
		Accuracy:  float64(tp+tn) / float64(len(samples)),
		Recall:    ratio(tp, tp+fn),
		Precision: ratio(tp, tp+fp),
	}
	if m.Recall+m.Precision > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
