package types

// Standing is one organization's tally within a single feed load.
//
// Organization is not guaranteed unique: the feed may list the same name on
// several rows and each row is kept as its own Standing.
type Standing struct {
	Organization string `json:"organization"`

	// Score is the parsed numeric value used for ranking and bar height.
	Score float64 `json:"score"`

	// ScoreText is the score exactly as the feed wrote it. Displays use this
	// so values are never rounded or reformatted.
	ScoreText string `json:"score_text"`
}
