// Package models defines the domain types for Zap.
package models

import "time"

// Note is the record the editor core mutates: one note file in the vault.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	DueDates  []int64   `json:"dueDates"`
	IsDaily   bool      `json:"isDaily"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteSummary is a lightweight representation returned by list operations.
type NoteSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	IsDaily   bool      `json:"isDaily"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteMetadata describes a note file as seen by storage.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is an open checkbox item found in some note.
type Task struct {
	Text      string `json:"text"`
	NoteID    string `json:"noteId"`
	NoteTitle string `json:"noteTitle"`
	DueDate   *int64 `json:"dueDate"`
}

// Link is a directed wiki-link edge between two notes.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// TagCount is a tag with the number of notes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// GraphNode is a note in the link graph.
type GraphNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Graph is the wiki-link graph across all notes.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []Link      `json:"edges"`
}
