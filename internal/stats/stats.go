package stats

import (
	"context"
	"fmt"
	"time"
)

// Counter is the part of db.Store the aggregator reads from.
type Counter interface {
	CountCompleted(ctx context.Context, authorID int64, since *time.Time) (int, error)
	CountAllCompleted(ctx context.Context) (int, error)
	CountUnclaimed(ctx context.Context) (int, error)
}

// UserStats are a contributor's completions over rolling calendar windows.
type UserStats struct {
	Total     int `json:"total"`
	Today     int `json:"today"`
	ThisWeek  int `json:"this_week"`
	ThisMonth int `json:"this_month"`
}

type Aggregator struct {
	counter Counter
}

func NewAggregator(counter Counter) *Aggregator {
	return &Aggregator{counter: counter}
}

// Windows returns the start of now's day, ISO week (Monday) and month, in now's location.
func Windows(now time.Time) (day, week, month time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	day = time.Date(y, m, d, 0, 0, 0, 0, loc)
	offset := (int(now.Weekday()) + 6) % 7
	week = time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	month = time.Date(y, m, 1, 0, 0, 0, 0, loc)
	return day, week, month
}

// UserStats counts each window separately; week and month are never derived from the total.
func (a *Aggregator) UserStats(ctx context.Context, authorID int64, now time.Time) (UserStats, error) {
	day, week, month := Windows(now)

	var s UserStats
	var err error
	if s.Total, err = a.counter.CountCompleted(ctx, authorID, nil); err != nil {
		return UserStats{}, fmt.Errorf("count total: %w", err)
	}
	if s.Today, err = a.counter.CountCompleted(ctx, authorID, &day); err != nil {
		return UserStats{}, fmt.Errorf("count today: %w", err)
	}
	if s.ThisWeek, err = a.counter.CountCompleted(ctx, authorID, &week); err != nil {
		return UserStats{}, fmt.Errorf("count this week: %w", err)
	}
	if s.ThisMonth, err = a.counter.CountCompleted(ctx, authorID, &month); err != nil {
		return UserStats{}, fmt.Errorf("count this month: %w", err)
	}
	return s, nil
}

// Total is the all-time completion count of one contributor.
func (a *Aggregator) Total(ctx context.Context, authorID int64) (int, error) {
	return a.counter.CountCompleted(ctx, authorID, nil)
}

// Global is the completion count across all contributors.
func (a *Aggregator) Global(ctx context.Context) (int, error) {
	return a.counter.CountAllCompleted(ctx)
}

// Remaining is the number of items still waiting for a recording.
func (a *Aggregator) Remaining(ctx context.Context) (int, error) {
	return a.counter.CountUnclaimed(ctx)
}
