package entity

import "time"

// Message is immutable once stored. SequenceId is the ordering key within a
// room; CreatedAt is for display only.
type Message struct {
	Id         string    `bson:"_id" json:"id"`
	Room       string    `bson:"room" json:"room"`
	Content    string    `bson:"content" json:"content"`
	SequenceId int64     `bson:"sequenceId" json:"sequenceId"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// PageView is one page of a room, newest first.
type PageView struct {
	Items      []Message `json:"items"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}
