package domain

// BreakoutRoom is one sub-session container. Rooms are numbered 1..N inside
// one generation; opening a new generation closes the previous rooms but
// keeps them for history.
type BreakoutRoom struct {
	ConferenceID ConferenceID `json:"conference_id"`
	Generation   int          `json:"generation"`
	Number       int          `json:"number"`
	Name         string       `json:"name"`
	Capacity     int          `json:"capacity"`
	IsOpen       bool         `json:"is_open"`
}
