package domain

// PlaybackState is the canonical last-writer-wins snapshot of what a scope
// is playing. LastUpdated is unix milliseconds as reported by the writer;
// a write that is not strictly newer than the stored snapshot is dropped.
type PlaybackState struct {
	CurrentSongID string   `json:"current_song_id,omitempty"`
	IsPlaying     bool     `json:"is_playing"`
	CurrentTime   float64  `json:"current_time"`
	Volume        int      `json:"volume"`
	PlaylistID    string   `json:"playlist_id,omitempty"`
	Queue         []string `json:"queue,omitempty"`
	LastUpdated   int64    `json:"last_updated"`
}

// CommandType discriminates transport commands routed to the active device.
type CommandType string

const (
	CommandPlay      CommandType = "play"
	CommandPause     CommandType = "pause"
	CommandNext      CommandType = "next"
	CommandPrevious  CommandType = "previous"
	CommandSetVolume CommandType = "set_volume"
	CommandPlaySong  CommandType = "play_song"
	CommandSeek      CommandType = "seek"
)

// Command is a transport command. Only the fields relevant to Type are set.
type Command struct {
	Type      CommandType `json:"type"`
	SongID    string      `json:"song_id,omitempty"`
	StartTime float64     `json:"start_time,omitempty"`
	Position  float64     `json:"position,omitempty"`
	Volume    int         `json:"volume,omitempty"`
}

// ClampVolume bounds v to the valid volume range.
func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
