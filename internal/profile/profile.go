package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidProfile = errors.New("invalid profile")

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

func (g Goal) IsValid() bool {
	switch g {
	case GoalLose, GoalMaintain, GoalGain:
		return true
	default:
		return false
	}
}

// ActivityLevel can be one of:
//   - sedentary
//   - light
//   - moderate
//   - active
//   - very
type ActivityLevel string

const (
	ActivitySedentary ActivityLevel = "sedentary"
	ActivityLight     ActivityLevel = "light"
	ActivityModerate  ActivityLevel = "moderate"
	ActivityActive    ActivityLevel = "active"
	ActivityVery      ActivityLevel = "very"
)

func (a ActivityLevel) IsValid() bool {
	switch a {
	case ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVery:
		return true
	default:
		return false
	}
}

// Multiplier is the factor applied to the BMR to get maintenance calories.
func (a ActivityLevel) Multiplier() float64 {
	switch a {
	case ActivitySedentary:
		return 1.2
	case ActivityLight:
		return 1.375
	case ActivityModerate:
		return 1.55
	case ActivityActive:
		return 1.725
	case ActivityVery:
		return 1.9
	default:
		return 1.55
	}
}

type Profile struct {
	UserID            string        `json:"userId"`
	Name              string        `json:"name"`
	Age               int           `json:"age"`
	HeightCm          float64       `json:"height"`
	WeightKg          float64       `json:"weight"`
	Gender            Gender        `json:"gender"`
	Goal              Goal          `json:"goal"`
	ActivityLevel     ActivityLevel `json:"activityLevel"`
	WorkoutsCompleted int           `json:"workoutsCompleted"`
	CaloriesBurned    int           `json:"caloriesBurned"`
	Streak            int           `json:"streak"`
	// LastActive is the UTC day of the last logged workout, "2006-01-02".
	LastActive string `json:"lastActive,omitempty"`
}

func Default(userID string) Profile {
	return Profile{
		UserID:        userID,
		Age:           30,
		HeightCm:      170,
		WeightKg:      70,
		Gender:        GenderMale,
		Goal:          GoalMaintain,
		ActivityLevel: ActivityModerate,
	}
}

// Update holds the fields a client may change. Nil fields are left as they
// are.
type Update struct {
	Name          *string        `json:"name,omitempty"`
	Age           *int           `json:"age,omitempty"`
	HeightCm      *float64       `json:"height,omitempty"`
	WeightKg      *float64       `json:"weight,omitempty"`
	Gender        *Gender        `json:"gender,omitempty"`
	Goal          *Goal          `json:"goal,omitempty"`
	ActivityLevel *ActivityLevel `json:"activityLevel,omitempty"`
}

// Apply merges u into a copy of p and validates the result.
func (p Profile) Apply(u Update) (Profile, error) {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.HeightCm != nil {
		p.HeightCm = *u.HeightCm
	}
	if u.WeightKg != nil {
		p.WeightKg = *u.WeightKg
	}
	if u.Gender != nil {
		p.Gender = *u.Gender
	}
	if u.Goal != nil {
		p.Goal = *u.Goal
	}
	if u.ActivityLevel != nil {
		p.ActivityLevel = *u.ActivityLevel
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) Validate() error {
	switch {
	case p.Age < 1 || p.Age > 120:
		return fmt.Errorf("%w: age %d", ErrInvalidProfile, p.Age)
	case p.HeightCm < 50 || p.HeightCm > 280:
		return fmt.Errorf("%w: height %.1f cm", ErrInvalidProfile, p.HeightCm)
	case p.WeightKg < 20 || p.WeightKg > 400:
		return fmt.Errorf("%w: weight %.1f kg", ErrInvalidProfile, p.WeightKg)
	case !p.Gender.IsValid():
		return fmt.Errorf("%w: gender %q", ErrInvalidProfile, p.Gender)
	case !p.Goal.IsValid():
		return fmt.Errorf("%w: goal %q", ErrInvalidProfile, p.Goal)
	case !p.ActivityLevel.IsValid():
		return fmt.Errorf("%w: activity level %q", ErrInvalidProfile, p.ActivityLevel)
	case len(p.Name) > 100:
		return fmt.Errorf("%w: name too long", ErrInvalidProfile)
	}
	return nil
}

const dayLayout = "2006-01-02"

func dayOf(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// UpdateStreak records activity on the UTC day of now. Activity on the day
// after LastActive extends the streak, a gap resets it to 1, a second
// activity on the same day changes nothing.
func UpdateStreak(p Profile, now time.Time) Profile {
	today := dayOf(now)
	if p.LastActive == today {
		return p
	}
	if p.LastActive == dayOf(now.UTC().AddDate(0, 0, -1)) {
		p.Streak++
	} else {
		p.Streak = 1
	}
	p.LastActive = today
	return p
}

// LogWorkout counts one completed workout that burned calories kcal.
func LogWorkout(p Profile, calories int, now time.Time) Profile {
	p.WorkoutsCompleted++
	if calories > 0 {
		p.CaloriesBurned += calories
	}
	return UpdateStreak(p, now)
}
