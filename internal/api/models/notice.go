package models

// Notice is a transient user-facing message.
type Notice struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt Timestamp `json:"createdAt"`
	ExpiresAt Timestamp `json:"expiresAt"`
}

// NoticeList is the active notices, oldest first.
type NoticeList struct {
	Notices []Notice `json:"notices"`
}

// NoticeRequest lets a client report a failure it observed locally, such
// as a rejected clipboard write.
type NoticeRequest struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// TileSource is the active map tile layer.
type TileSource struct {
	Name        string `json:"name"`
	URLTemplate string `json:"urlTemplate"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
	Fallback    bool   `json:"fallback"`
	TileErrors  int    `json:"tileErrors"`
}

// TileErrorReport names the source that failed to load.
type TileErrorReport struct {
	Source string `json:"source"`
}
