// Package presenter maps ATS scores onto the qualitative scales shown to users.
package presenter

import "resumefit/internal/types"

// BucketName identifies a result bucket
type BucketName string

const (
	BucketExcellent BucketName = "excellent"
	BucketGood      BucketName = "good"
	BucketAverage   BucketName = "average"
	BucketPoor      BucketName = "poor"
)

// Tone is the semantic color of a score indicator
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// Bucket is the presentation of a freshly analyzed score
type Bucket struct {
	Name  BucketName `json:"name"`
	Label string     `json:"label"`
	Tone  Tone       `json:"tone"`
}

var (
	excellent = Bucket{Name: BucketExcellent, Label: "Excellent Match", Tone: ToneSuccess}
	good      = Bucket{Name: BucketGood, Label: "Good Match", Tone: ToneInfo}
	average   = Bucket{Name: BucketAverage, Label: "Average Match", Tone: ToneWarning}
	poor      = Bucket{Name: BucketPoor, Label: "Needs Improvement", Tone: ToneDanger}
)

// BucketFor returns the result bucket for score.
// Thresholds: 80 and above excellent, 60 good, 40 average, below 40 poor.
func BucketFor(score types.Score) Bucket {
	switch {
	case score >= 80:
		return excellent
	case score >= 60:
		return good
	case score >= 40:
		return average
	default:
		return poor
	}
}

// Badge is the severity of a history row
type Badge string

const (
	BadgePositive Badge = "positive"
	BadgeCaution  Badge = "caution"
	BadgeNegative Badge = "negative"
)

// BadgeFor returns the history badge for score. The history scale is
// independent from BucketFor: 70 and above positive, 50 caution, else negative.
func BadgeFor(score types.Score) Badge {
	switch {
	case score >= 70:
		return BadgePositive
	case score >= 50:
		return BadgeCaution
	default:
		return BadgeNegative
	}
}

// Tone maps a badge onto the shared tone palette
func (b Badge) Tone() Tone {
	switch b {
	case BadgePositive:
		return ToneSuccess
	case BadgeCaution:
		return ToneWarning
	default:
		return ToneDanger
	}
}
