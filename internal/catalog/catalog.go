package catalog

// Catalog is the static exercise catalog. The zero value is not usable, use
// New.
type Catalog struct {
	entries map[ExerciseID]Entry
}

func New() *Catalog {
	entries := make(map[ExerciseID]Entry, len(AllExercises))
	for _, id := range AllExercises {
		entries[id] = entryFor(id)
	}
	return &Catalog{
		entries: entries,
	}
}

// Lookup returns a copy of the entry for id.
func (c *Catalog) Lookup(id ExerciseID) (Entry, bool) {
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return cloneEntry(e), true
}

func (c *Catalog) List() []Entry {
	list := make([]Entry, 0, len(AllExercises))
	for _, id := range AllExercises {
		list = append(list, cloneEntry(c.entries[id]))
	}
	return list
}

// FeedbackScript returns the feedback script for the exercise, or an empty
// script when the identifier is unknown.
func (c *Catalog) FeedbackScript(exerciseID string) []string {
	id, ok := ParseExerciseID(exerciseID)
	if !ok {
		return []string{}
	}
	return cloneStrings(c.entries[id].FeedbackScript)
}

func cloneEntry(e Entry) Entry {
	e.InstructionSteps = cloneStrings(e.InstructionSteps)
	e.CommonErrors = cloneStrings(e.CommonErrors)
	e.FeedbackScript = cloneStrings(e.FeedbackScript)
	return e
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// entryFor is exhaustive over ExerciseID; adding an id without content
// panics at catalog construction.
func entryFor(id ExerciseID) Entry {
	switch id {
	case ExerciseSquat:
		return Entry{
			ID:          id,
			DisplayName: "Squat",
			Title:       "Proper Squat Form",
			InstructionSteps: []string{
				"Stand with feet shoulder-width apart, toes slightly turned out",
				"Keep chest up, shoulders back, and core engaged",
				"Begin by pushing hips back, then bend knees to lower down",
				"Lower until thighs are parallel to floor or as deep as comfortable",
				"Keep weight in heels and midfoot, knees tracking over toes",
				"Push through heels to stand back up to starting position",
			},
			CommonErrors: []string{
				"Knees collapsing inward",
				"Rising onto toes or heels coming off floor",
				"Rounded back or excessive forward lean",
				"Not reaching adequate depth",
				"Looking down instead of maintaining neutral gaze",
			},
			FeedbackScript: []string{
				"Good hip hinge at the start of the movement",
				"Knees are tracking slightly inward - focus on pushing them outward in line with toes",
				"Maintain a more neutral spine by keeping chest up throughout the movement",
				"Try to lower your hips below parallel for better range of motion",
				"Weight distribution looks good - stay on your heels and midfoot",
				"Good depth on that rep, maintain consistent depth on each repetition",
				"Remember to breathe out as you push up from the bottom position",
			},
		}
	case ExercisePushup:
		return Entry{
			ID:          id,
			DisplayName: "Push-up",
			Title:       "Proper Push-up Form",
			InstructionSteps: []string{
				"Start in plank position with hands slightly wider than shoulders",
				"Create a straight line from head to heels",
				"Engage core and glutes to maintain rigid body position",
				"Lower chest toward floor by bending elbows at 45° angle from body",
				"Lower until chest is about an inch from floor",
				"Push through palms to return to starting position",
			},
			CommonErrors: []string{
				"Sagging or hiking the hips",
				"Flaring elbows too wide",
				"Not going low enough or going too low",
				"Head dropping forward or looking up too much",
				"Holding breath instead of breathing rhythmically",
			},
			FeedbackScript: []string{
				"Keep your elbows at a 45 degree angle from your body, avoid flaring them out",
				"Core is engaged well, maintain that tension throughout",
				"Lower your chest closer to the ground for full range of motion",
				"Keep your neck in a neutral position by looking at a spot on the floor",
				"Your hand placement looks good - directly under your shoulders",
				"Maintain a straight line from head to heels by engaging your glutes",
				"Try to move at a controlled tempo - 2 seconds down, 1 second up",
			},
		}
	case ExerciseLunge:
		return Entry{
			ID:          id,
			DisplayName: "Lunge",
			Title:       "Proper Lunge Form",
			InstructionSteps: []string{
				"Stand tall with feet hip-width apart",
				"Step forward with one leg into a stride position",
				"Lower body by bending both knees to about 90 degrees",
				"Keep front knee aligned over ankle, not pushing forward of toes",
				"Maintain upright torso and engaged core",
				"Push through front heel to return to standing or continue to next rep",
			},
			CommonErrors: []string{
				"Front knee extending past toes",
				"Leaning too far forward",
				"Back knee not lowering enough",
				"Unstable front foot or heel lifting",
				"Shoulders hunching or poor posture",
			},
			FeedbackScript: []string{
				"Front knee is tracking well over your toe, good alignment",
				"Keep your torso more upright by engaging your core muscles",
				"Your step length is appropriate - maintain this distance",
				"Lower your back knee closer to the ground for full range of motion",
				"Weight should be primarily through the heel of your front foot",
				"Maintain even timing between repetitions for consistent form",
				"Keep your shoulders pulled back and down away from your ears",
			},
		}
	case ExercisePlank:
		return Entry{
			ID:          id,
			DisplayName: "Plank",
			Title:       "Proper Plank Form",
			InstructionSteps: []string{
				"Place forearms on ground with elbows under shoulders",
				"Extend legs behind you with toes tucked under",
				"Create a straight line from head to heels",
				"Engage core by drawing navel toward spine",
				"Keep shoulders relaxed away from ears",
				"Hold position while breathing normally",
			},
			CommonErrors: []string{
				"Sagging hips or midsection",
				"Raising hips too high (piking)",
				"Holding breath instead of breathing normally",
				"Neck strain from improper head position",
				"Shoulder blades not properly engaged",
			},
			FeedbackScript: []string{
				"Shoulders should be stacked directly over your wrists or elbows",
				"Your hips are slightly too high - lower them to create a straight line",
				"Engage your core more by drawing your navel toward your spine",
				"Keep your neck in a neutral position by looking at a spot on the floor",
				"Distribute weight evenly between your forearms and toes",
				"Remember to breathe normally while holding the position",
				"Squeeze your glutes to help maintain proper hip position",
			},
		}
	default:
		panic("catalog: no entry for exercise " + string(id))
	}
}
