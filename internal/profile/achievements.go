package profile

import "math"

const (
	WorkoutsMilestone = 10
	CaloriesMilestone = 1000
	StreakMilestone   = 7
)

type Achievement struct {
	Title    string  `json:"title"`
	Current  int     `json:"current"`
	Target   int     `json:"target"`
	Progress float64 `json:"progress"`
	Unlocked bool    `json:"unlocked"`
}

func Achievements(p Profile) []Achievement {
	return []Achievement{
		newAchievement("Workouts", p.WorkoutsCompleted, WorkoutsMilestone),
		newAchievement("Calories Burned", p.CaloriesBurned, CaloriesMilestone),
		newAchievement("Streak", p.Streak, StreakMilestone),
	}
}

func newAchievement(title string, current, target int) Achievement {
	progress := math.Min(100, float64(current)/float64(target)*100)
	return Achievement{
		Title:    title,
		Current:  current,
		Target:   target,
		Progress: progress,
		Unlocked: progress >= 100,
	}
}
