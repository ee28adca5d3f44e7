package model

// PersonalBest is one MonkeyType personal-best entry.
//
// Timestamp is epoch milliseconds, exactly as MonkeyType returns it.
type PersonalBest struct {
	Acc         float64 `json:"acc"`
	Consistency float64 `json:"consistency"`
	Difficulty  string  `json:"difficulty"`
	LazyMode    bool    `json:"lazyMode"`
	Language    string  `json:"language"`
	Punctuation bool    `json:"punctuation"`
	Raw         float64 `json:"raw"`
	WPM         float64 `json:"wpm"`
	Timestamp   int64   `json:"timestamp"`
}

// StatsBundle maps a test duration in seconds ("15", "60", ...) to the
// personal bests recorded for it.
type StatsBundle map[string][]PersonalBest
