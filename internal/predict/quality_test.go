package predict

import (
	"strings"
	"testing"
)

func TestAssessQuality(t *testing.T) {
	tests := []struct {
		name       string
		sampleSize int
		confidence float64
		want       QualityTier
	}{
		{"high", 50, 0.8, QualityHigh},
		{"plenty of data", 200, 0.95, QualityHigh},
		{"big sample low confidence", 80, 0.5, QualityLow},
		{"medium", 20, 0.6, QualityMedium},
		{"medium sample high confidence", 30, 0.9, QualityMedium},
		{"small sample", 5, 0.9, QualityLow},
		{"nothing", 0, 0, QualityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessQuality(tt.sampleSize, tt.confidence)
			if got.Tier != tt.want {
				t.Errorf("AssessQuality(%d, %v).Tier = %v, want %v", tt.sampleSize, tt.confidence, got.Tier, tt.want)
			}
			if got.SampleSize != tt.sampleSize {
				t.Errorf("SampleSize = %d, want %d", got.SampleSize, tt.sampleSize)
			}
			if got.Text == "" || got.Icon == "" || got.Color == "" {
				t.Error("quality presentation fields should all be populated")
			}
		})
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name    string
		records int
		tier    QualityTier
		percent float64
	}{
		{"empty", 0, QualityLow, 0},
		{"below reliability floor", 10, QualityLow, 20},
		{"unlocked 30min reliability", 20, QualityMedium, 40},
		{"unlocked 15min", 30, QualityMedium, 60},
		{"at target", 50, QualityHigh, 100},
		{"beyond target", 150, QualityHigh, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Progress(tt.records)
			if got.Tier != tt.tier {
				t.Errorf("Progress(%d).Tier = %v, want %v", tt.records, got.Tier, tt.tier)
			}
			if got.ProgressPercent != tt.percent {
				t.Errorf("ProgressPercent = %v, want %v", got.ProgressPercent, tt.percent)
			}
			if got.TargetRecords != 50 {
				t.Errorf("TargetRecords = %d, want 50", got.TargetRecords)
			}
			if len(got.Recommendations) == 0 {
				t.Error("Progress should always carry guidance")
			}
		})
	}
}

func TestProgressCountdowns(t *testing.T) {
	// Each band names how many records unlock the next tier.
	if got := Progress(25); !containsSubstring(got.Recommendations, "5 more records") {
		t.Errorf("Progress(25) guidance = %v, want countdown to 30", got.Recommendations)
	}
	if got := Progress(40); !containsSubstring(got.Recommendations, "10 more records") {
		t.Errorf("Progress(40) guidance = %v, want countdown to 50", got.Recommendations)
	}
	if got := Progress(60); !containsSubstring(got.Recommendations, "Record 40 more") {
		t.Errorf("Progress(60) guidance = %v, want countdown to 100", got.Recommendations)
	}
}

func containsSubstring(ss []string, sub string) bool {
	for _, s := range ss {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
