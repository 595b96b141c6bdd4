package bean

type Result[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Err  any    `json:"err,omitempty"`
	Data T      `json:"data,omitempty"`
}

type Stats struct {
	Generation     uint64  `json:"generation"`
	DiscardedBytes uint64  `json:"discardedBytes"`
	LastFrameSize  int     `json:"lastFrameSize"`
	LastPublished  string  `json:"lastPublished,omitempty"`
	Fps            float64 `json:"fps"`
	HistoryFrames  int     `json:"historyFrames"`
	Sessions       int     `json:"sessions"`
}

type HistoryEntry struct {
	Generation uint64 `json:"generation"`
	Size       int    `json:"size"`
	Timestamp  string `json:"timestamp"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}
