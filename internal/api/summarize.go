package api

import "github.com/Veraticus/khata/internal/model"

// Summary aggregates report rows into accuracy statistics.
type Summary struct {
	ByCategory        map[string]CategoryAccuracy `json:"by_category"`
	Total             int                         `json:"total"`
	Correct           int                         `json:"correct"`
	Accuracy          float64                     `json:"accuracy"`
	AverageConfidence float64                     `json:"average_confidence"`
}

// CategoryAccuracy is the accuracy for rows currently filed under one category.
type CategoryAccuracy struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Summarize computes accuracy and average confidence over rows. Rows with
// no current category count toward the total under "".
func Summarize(rows []model.ReportRow) Summary {
	s := Summary{ByCategory: make(map[string]CategoryAccuracy)}
	if len(rows) == 0 {
		return s
	}

	var confidence float64
	for _, row := range rows {
		s.Total++
		confidence += row.Confidence

		cat := s.ByCategory[row.CurrentCategory]
		cat.Total++
		if row.IsCorrect {
			s.Correct++
			cat.Correct++
		}
		s.ByCategory[row.CurrentCategory] = cat
	}

	s.Accuracy = float64(s.Correct) / float64(s.Total)
	s.AverageConfidence = confidence / float64(s.Total)
	for name, cat := range s.ByCategory {
		cat.Accuracy = float64(cat.Correct) / float64(cat.Total)
		s.ByCategory[name] = cat
	}
	return s
}
