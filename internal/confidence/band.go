package confidence

// Level is a qualitative band for any confidence value.
type Level string

const (
	LevelVeryHigh Level = "Very High"
	LevelHigh     Level = "High"
	LevelMedium   Level = "Medium"
	LevelLow      Level = "Low"
	LevelVeryLow  Level = "Very Low"
)

// Band maps a field-level or aggregate confidence to its level.
func Band(score float64) Level {
	switch {
	case score >= 0.95:
		return LevelVeryHigh
	case score >= 0.85:
		return LevelHigh
	case score >= 0.70:
		return LevelMedium
	case score >= 0.50:
		return LevelLow
	default:
		return LevelVeryLow
	}
}
