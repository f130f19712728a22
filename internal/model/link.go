package model

import "time"

// Link is one button on a profile. Order defines the ascending display
// sequence; only Active links are shown publicly.
type Link struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Order     int       `json:"order"`
	Active    bool      `json:"active"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LinkStats are the dashboard KPIs for one profile.
type LinkStats struct {
	Links       int   `json:"links"`
	ActiveLinks int   `json:"activeLinks"`
	TotalClicks int64 `json:"totalClicks"`
}

// ActiveLinks returns the active subset of links, preserving order.
func ActiveLinks(links []Link) []Link {
	active := make([]Link, 0, len(links))
	for _, l := range links {
		if l.Active {
			active = append(active, l)
		}
	}
	return active
}

// StatsOf computes the KPIs of a full link list.
func StatsOf(links []Link) LinkStats {
	stats := LinkStats{Links: len(links)}
	for _, l := range links {
		if l.Active {
			stats.ActiveLinks++
		}
		stats.TotalClicks += l.Clicks
	}
	return stats
}
