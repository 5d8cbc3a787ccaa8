package aggregation

// AggregatedTime is an item's own time plus the time of every descendant
type AggregatedTime struct {
	OwnTime      int64 `json:"ownTime"`
	SubItemsTime int64 `json:"subItemsTime"`
	TotalTime    int64 `json:"totalTime"`
}

// UserTime is one user's share of a project
type UserTime struct {
	UserID       string  `json:"userId"`
	TotalTime    int64   `json:"totalTime"`
	EntryCount   int     `json:"entryCount"`
	MeanDuration float64 `json:"meanDuration"`
}

// ItemTime is one item's share of a project or of a user's time
type ItemTime struct {
	ItemID    string `json:"itemId"`
	ItemKey   string `json:"itemKey"`
	Title     string `json:"title"`
	TotalTime int64  `json:"totalTime"`
}

// ProjectTimeStats is the project roll-up
type ProjectTimeStats struct {
	ProjectID string     `json:"projectId"`
	TotalTime int64      `json:"totalTime"`
	ByUser    []UserTime `json:"byUser"`
	ByItem    []ItemTime `json:"byItem"`
}

// ProjectTime is one project's share of a user's time
type ProjectTime struct {
	ProjectID string `json:"projectId"`
	TotalTime int64  `json:"totalTime"`
}

// UserTimeStats is a user's roll-up across projects and items
type UserTimeStats struct {
	UserID       string        `json:"userId"`
	TotalTime    int64         `json:"totalTime"`
	EntryCount   int           `json:"entryCount"`
	MeanDuration float64       `json:"meanDuration"`
	ByProject    []ProjectTime `json:"byProject"`
	ByItem       []ItemTime    `json:"byItem"`
}
