package core

// Relationship is read-only persona/affection metadata attached to a
// context bundle. The memory core passes it through without interpreting
// it; the affection system that produces it lives outside this module.
type Relationship struct {
	// Level is the named relationship tier (e.g. "stranger", "friend").
	Level string

	// Mood is the companion's current mood label.
	Mood string

	// Score is the raw affection score backing Level.
	Score float64
}
