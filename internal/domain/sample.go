package domain

// MaxLevel is the upper bound of a metered audio level.
const MaxLevel = 100

// LevelSample is one ephemeral microphone-level reading. It is never
// persisted; the relay drops it when nobody is listening.
type LevelSample struct {
	RoomID    RoomID    `json:"room_id"`
	SessionID SessionID `json:"session_id"`
	Level     int       `json:"level"`
}

// ClampLevel bounds a raw meter reading to [0, MaxLevel].
func ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
