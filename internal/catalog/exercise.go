package catalog

import "strings"

// ExerciseID is one of the exercises supported by form analysis:
//   - squat
//   - pushup
//   - lunge
//   - plank
type ExerciseID string

const (
	ExerciseSquat  ExerciseID = "squat"
	ExercisePushup ExerciseID = "pushup"
	ExerciseLunge  ExerciseID = "lunge"
	ExercisePlank  ExerciseID = "plank"
)

// AllExercises lists the supported exercises in display order.
var AllExercises = []ExerciseID{
	ExerciseSquat,
	ExercisePushup,
	ExerciseLunge,
	ExercisePlank,
}

func (id ExerciseID) String() string {
	return string(id)
}

func (id ExerciseID) IsValid() bool {
	switch id {
	case ExerciseSquat,
		ExercisePushup,
		ExerciseLunge,
		ExercisePlank:
		return true
	default:
		return false
	}
}

// ParseExerciseID normalizes s and reports whether it names a known exercise.
func ParseExerciseID(s string) (ExerciseID, bool) {
	id := ExerciseID(strings.ToLower(strings.TrimSpace(s)))
	return id, id.IsValid()
}

// Entry is the read-only catalog record of one exercise.
type Entry struct {
	ID               ExerciseID `json:"id"`
	DisplayName      string     `json:"displayName"`
	Title            string     `json:"title"`
	InstructionSteps []string   `json:"instructionSteps"`
	CommonErrors     []string   `json:"commonErrors"`
	FeedbackScript   []string   `json:"feedbackScript"`
}
