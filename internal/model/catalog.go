package model

import "time"

// Group は参加可能なグループを表す。
type Group struct {
	ID           string
	Slug         string
	Name         string
	Description  string
	MembersCount int
	IsMember     bool
}

// LiveClass はライブ授業を表す。
type LiveClass struct {
	ID           string
	Title        string
	Description  string
	Instructor   AuthorSummary
	StartsAt     *time.Time
	Capacity     int
	IsRegistered bool
}

// LearningResource は教材マーケットプレイスの出品を表す。
type LearningResource struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Currency    string
	Author      AuthorSummary
	File        *MediaRef
	CreatedAt   time.Time
}

// Notification はユーザーへの通知を表す。
type Notification struct {
	ID        string
	Kind      string
	Message   string
	Read      bool
	CreatedAt time.Time
}

// CountUnread は未読通知の件数を返す。
func CountUnread(ns []Notification) int {
	n := 0
	for _, x := range ns {
		if !x.Read {
			n++
		}
	}
	return n
}
