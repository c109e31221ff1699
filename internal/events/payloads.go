package events

// TickPayload is attached to TIME_TICK and TIME_JUMP events.
type TickPayload struct {
	TickNumber uint64 `json:"tick_number"`
	Forced     bool   `json:"forced"`
	Alive      int    `json:"alive"`
	Dying      int    `json:"dying"`
	Dead       int    `json:"dead"`
	Ended      bool   `json:"ended"`
}

// ZooGeneratedPayload describes a freshly generated population.
type ZooGeneratedPayload struct {
	Population int            `json:"population"`
	Species    map[string]int `json:"species"`
}

// LifeStatePayload is attached to LIFE_STATE_CHANGED events.
type LifeStatePayload struct {
	Species string  `json:"species"`
	State   string  `json:"state"`
	Health  float64 `json:"health"`
}

// FeedPayload is attached to ANIMALS_FED events.
type FeedPayload struct {
	Fed   int     `json:"fed"`
	Boost float64 `json:"boost"`
}

// RemovalPayload is attached to ANIMAL_REMOVED events.
type RemovalPayload struct {
	Species string `json:"species"`
}

// GameEndedPayload is attached to GAME_ENDED events.
type GameEndedPayload struct {
	Population int    `json:"population"`
	Ticks      uint64 `json:"ticks"`
}
