package models

import "time"

// Item is one sentence waiting for (or holding) a voice recording.
// AudioRef, Author, AuthorID and CompletedAt are either all nil or all set.
type Item struct {
	ID          int64      `db:"id"`
	Text        string     `db:"text"`
	AudioRef    *string    `db:"audio_ref"`
	Author      *string    `db:"author"`
	AuthorID    *int64     `db:"author_id"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Completed reports whether a recording has been attached to the item.
func (i *Item) Completed() bool {
	return i.AudioRef != nil
}

// CompletedItem is the export view of a completed Item.
type CompletedItem struct {
	ID          int64     `db:"id"`
	Text        string    `db:"text"`
	AudioRef    string    `db:"audio_ref"`
	Author      string    `db:"author"`
	CompletedAt time.Time `db:"completed_at"`
}
