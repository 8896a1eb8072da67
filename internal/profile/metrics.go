package profile

import (
	"math"
	"time"
)

// BMI is weight / height², height in meters.
func BMI(heightCm, weightKg float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return weightKg / (m * m)
}

func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25:
		return "Normal weight"
	case bmi < 30:
		return "Overweight"
	default:
		return "Obesity"
	}
}

// BMR is the Mifflin-St Jeor basal metabolic rate in kcal/day.
func BMR(p Profile) float64 {
	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Gender == GenderMale {
		return base + 5
	}
	return base - 161
}

// DailyCalories is the rounded daily intake for the activity level, with a
// 500 kcal deficit or surplus for the lose and gain goals.
func DailyCalories(bmr float64, level ActivityLevel, goal Goal) int {
	maintenance := bmr * level.Multiplier()
	switch goal {
	case GoalLose:
		return int(math.Round(maintenance - 500))
	case GoalGain:
		return int(math.Round(maintenance + 500))
	default:
		return int(math.Round(maintenance))
	}
}

type HealthMetrics struct {
	BMI           float64 `json:"bmi"`
	BMICategory   string  `json:"bmiCategory"`
	BMR           float64 `json:"bmr"`
	DailyCalories int     `json:"dailyCalories"`
}

func ComputeMetrics(p Profile) HealthMetrics {
	bmi := BMI(p.HeightCm, p.WeightKg)
	bmr := BMR(p)
	return HealthMetrics{
		BMI:           bmi,
		BMICategory:   BMICategory(bmi),
		BMR:           bmr,
		DailyCalories: DailyCalories(bmr, p.ActivityLevel, p.Goal),
	}
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// WorkoutCalories estimates kcal burned: minutes times 3, 5 or 7 by
// difficulty, rounded.
func WorkoutCalories(elapsed time.Duration, difficulty Difficulty) int {
	perMinute := 7.0
	switch difficulty {
	case DifficultyBeginner:
		perMinute = 3
	case DifficultyIntermediate:
		perMinute = 5
	}
	return int(math.Round(elapsed.Minutes() * perMinute))
}
