package model

type Analytics struct {
	Total      int               `json:"total"`
	ByPriority map[Priority]int  `json:"byPriority"`
	ByStatus   map[Status]int    `json:"byStatus"`
	BySLA      map[SLAStatus]int `json:"bySLA"`
	// AvgResolutionTime is the mean created-to-resolved time of resolved issues, in whole hours.
	AvgResolutionTime int          `json:"avgResolutionTime"`
	TrendData         []TrendPoint `json:"trendData"`
}

type TrendPoint struct {
	Date     string `json:"date"`
	Created  int    `json:"created"`
	Resolved int    `json:"resolved"`
}
