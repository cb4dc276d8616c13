package models

// Settings is the persisted preference set.
type Settings struct {
	AutoRefresh            bool   `json:"autoRefresh"`
	RefreshIntervalSeconds int    `json:"refreshIntervalSeconds"`
	CSVDelimiter           string `json:"csvDelimiter"`
}

// SettingsPatch updates any subset of Settings.
type SettingsPatch struct {
	AutoRefresh            *bool   `json:"autoRefresh,omitempty"`
	RefreshIntervalSeconds *int    `json:"refreshIntervalSeconds,omitempty"`
	CSVDelimiter           *string `json:"csvDelimiter,omitempty"`
}

// Favorite is a saved location.
type Favorite struct {
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt Timestamp `json:"createdAt"`
}

// FavoriteList is the favorites response, newest first.
type FavoriteList struct {
	Favorites []Favorite `json:"favorites"`
	Max       int        `json:"max"`
}
