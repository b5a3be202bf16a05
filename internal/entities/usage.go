package entities

type UsageStatus struct {
	UserID         string `json:"user_id"`
	TodaySent      int    `json:"today_sent"`
	TodayReceived  int    `json:"today_received"`
	DailyLimit     int    `json:"daily_limit"`
	DailyRemaining int    `json:"daily_remaining"` // -1 when unlimited
	DailyPercent   int    `json:"daily_percent"`
}

// NewUsageStatus computes remaining quota the same way for every caller.
func NewUsageStatus(userID string, sent, received, limit int) *UsageStatus {
	s := &UsageStatus{
		UserID:        userID,
		TodaySent:     sent,
		TodayReceived: received,
		DailyLimit:    limit,
	}
	if limit <= 0 {
		s.DailyRemaining = -1
		return s
	}
	s.DailyRemaining = limit - sent
	if s.DailyRemaining < 0 {
		s.DailyRemaining = 0
	}
	s.DailyPercent = (sent * 100) / limit
	if s.DailyPercent > 100 {
		s.DailyPercent = 100
	}
	return s
}
