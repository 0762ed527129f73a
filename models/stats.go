package models

// DashboardStats is the admin landing payload.
type DashboardStats struct {
	Users struct {
		Total      int     `json:"total"`
		NewToday   int     `json:"new_today"`
		NewWeek    int     `json:"new_week"`
		NewMonth   int     `json:"new_month"`
		GrowthRate float64 `json:"growth_rate"`
	} `json:"users"`
	Subscriptions struct {
		Free     int `json:"free"`
		Premium  int `json:"premium"`
		Business int `json:"business"`
	} `json:"subscriptions"`
	Tools struct {
		Total    int `json:"total"`
		Public   int `json:"public"`
		Premium  int `json:"premium"`
		Business int `json:"business"`
	} `json:"tools"`
	Reviews struct {
		Total    int `json:"total"`
		Verified int `json:"verified"`
	} `json:"reviews"`
	Revenue struct {
		Monthly    float64 `json:"monthly"`
		LastMonth  float64 `json:"last_month"`
		GrowthRate float64 `json:"growth_rate"`
	} `json:"revenue"`
}

type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DailyAmount struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type NamedAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type UserStats struct {
	DailySignups             []DailyCount `json:"daily_signups"`
	SubscriptionDistribution []NamedCount `json:"subscription_distribution"`
}

type ToolRank struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Rating        float64 `json:"rating,omitempty"`
	FavoriteCount int     `json:"favorite_count,omitempty"`
	Category      *string `json:"category"`
}

type ToolStats struct {
	CategoryDistribution    []NamedCount `json:"category_distribution"`
	AccessLevelDistribution []NamedCount `json:"access_level_distribution"`
	TopRated                []ToolRank   `json:"top_rated"`
	MostFavorited           []ToolRank   `json:"most_favorited"`
}

type RevenueStats struct {
	DailyRevenue  []DailyAmount `json:"daily_revenue"`
	RevenueByTier []NamedAmount `json:"revenue_by_tier"`
}
