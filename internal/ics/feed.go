package ics

import (
	"context"
	"errors"
	"time"

	"mairiecal/internal/model"
)

// ErrEmptyFeed is returned when a feed parses to no events.
var ErrEmptyFeed = errors.New("ics: feed has no events")

// FeedFallback serves a calendar feed as the offline schedule. It satisfies
// store.Fallback; the store substitutes its demonstration events when this
// returns an error.
type FeedFallback struct {
	Fetcher  *Fetcher
	Source   Source
	Location *time.Location
}

func (f FeedFallback) Events(ctx context.Context, _ time.Time) ([]model.Event, error) {
	if f.Fetcher == nil || f.Source.URL == "" {
		return nil, errors.New("ics: no feed configured")
	}
	res, err := f.Fetcher.Fetch(ctx, f.Source)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseICS(f.Source, res.Body, f.Location)
	if err != nil {
		return nil, err
	}
	events := ToEvents(parsed, f.Location)
	if len(events) == 0 {
		return nil, ErrEmptyFeed
	}
	return events, nil
}
