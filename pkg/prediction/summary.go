package prediction

import (
	"fmt"

	"github.com/neurotrace/intake/pkg/common/models"
)

// HighConfidence is the confidence at which a prediction is treated as decisive.
const HighConfidence = 0.8

// Summarize renders a prediction for display.
func Summarize(resp models.PredictionResponse) models.PredictionSummary {
	s := models.PredictionSummary{
		Confidence: percent(resp.Confidence),
	}

	decisive := resp.Confidence >= HighConfidence
	if resp.Prediction == 0 {
		s.Result = "No Dementia"
		s.RiskLevel, s.Color = "Moderate", "yellow"
		if decisive {
			s.RiskLevel, s.Color = "Low", "green"
		}
	} else {
		s.Result = "Dementia Detected"
		s.RiskLevel, s.Color = "Moderate", "orange"
		if decisive {
			s.RiskLevel, s.Color = "High", "red"
		}
	}

	if len(resp.Probs) == 2 {
		s.NoDementia = percent(resp.Probs[0])
		s.Dementia = percent(resp.Probs[1])
	}
	return s
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
