package predict

import "fmt"

// QualityTier classifies how trustworthy a slot forecast is.
type QualityTier string

const (
	QualityHigh   QualityTier = "high"
	QualityMedium QualityTier = "medium"
	QualityLow    QualityTier = "low"
)

// DataQuality carries the tier plus the presentation the UI renders for it.
type DataQuality struct {
	Tier       QualityTier `json:"level"`
	Color      string      `json:"color"`
	Icon       string      `json:"icon"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	SampleSize int         `json:"sampleSize"`
}

// AssessQuality classifies a forecast's sample size and confidence.
func AssessQuality(sampleSize int, confidence float64) DataQuality {
	switch {
	case sampleSize >= 50 && confidence >= 0.8:
		return DataQuality{
			Tier:       QualityHigh,
			Color:      "green",
			Icon:       "🟢",
			Text:       fmt.Sprintf("Based on %d records; prediction accuracy is high", sampleSize),
			Confidence: confidence,
			SampleSize: sampleSize,
		}
	case sampleSize >= 20 && confidence >= 0.6:
		return DataQuality{
			Tier:       QualityMedium,
			Color:      "yellow",
			Icon:       "🟡",
			Text:       fmt.Sprintf("Based on %d records; prediction is fairly reliable", sampleSize),
			Confidence: confidence,
			SampleSize: sampleSize,
		}
	default:
		return DataQuality{
			Tier:       QualityLow,
			Color:      "orange",
			Icon:       "🟠",
			Text:       fmt.Sprintf("Not enough data (%d records); log a few more visits", sampleSize),
			Confidence: confidence,
			SampleSize: sampleSize,
		}
	}
}

// CollectionProgress reports global data-volume maturity: how far the whole
// store is from the 50-record target, independent of any one slot.
type CollectionProgress struct {
	CurrentRecords  int         `json:"currentRecords"`
	TargetRecords   int         `json:"targetRecords"`
	ProgressPercent float64     `json:"progressPercentage"`
	Tier            QualityTier `json:"qualityLevel"`
	Recommendations []string    `json:"recommendations"`
}

const progressTarget = 50

// Progress buckets the raw observation count into guidance bands, each
// telling the user what the next precision tier costs.
func Progress(currentRecords int) CollectionProgress {
	percent := float64(currentRecords) / float64(progressTarget) * 100
	if percent > 100 {
		percent = 100
	}

	p := CollectionProgress{
		CurrentRecords:  currentRecords,
		TargetRecords:   progressTarget,
		ProgressPercent: percent,
	}

	switch {
	case currentRecords >= 100:
		p.Tier = QualityHigh
		p.Recommendations = []string{
			"Plenty of data; 10-minute precision is enabled",
			"Predictions are highly accurate",
		}
	case currentRecords >= 50:
		p.Tier = QualityHigh
		p.Recommendations = []string{
			"Plenty of data; predictions are accurate",
			fmt.Sprintf("Record %d more to unlock 10-minute precision", 100-currentRecords),
		}
	case currentRecords >= 30:
		p.Tier = QualityMedium
		p.Recommendations = []string{
			"15-minute precision is enabled",
			fmt.Sprintf("%d more records to reach high-accuracy predictions", 50-currentRecords),
		}
	case currentRecords >= 20:
		p.Tier = QualityMedium
		p.Recommendations = []string{
			fmt.Sprintf("%d more records to unlock 15-minute precision", 30-currentRecords),
			"Currently at 30-minute precision",
		}
	default:
		p.Tier = QualityLow
		p.Recommendations = []string{
			fmt.Sprintf("At least %d more records needed for reliable predictions", 20-currentRecords),
			"Try recording at different times across the week",
			"More data means better predictions",
		}
	}
	return p
}
