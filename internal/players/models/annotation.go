package models

import (
	"strings"
	"time"

	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
)

const (
	MaxCommentLength = 4000
	MaxTagLength     = 48
)

// Comment is free text a community member attached to a player. Comments are
// attestable artifacts.
type Comment struct {
	ID        id.CommentID `json:"id"`
	PlayerID  id.PlayerID  `json:"player_id"`
	AuthorID  id.CallerID  `json:"author_id"`
	Body      string       `json:"body"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewComment(commentID id.CommentID, playerID id.PlayerID, author id.CallerID, body string, now time.Time) (*Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "comment body cannot be empty")
	}
	if len(body) > MaxCommentLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "comment must be 4000 characters or less")
	}
	return &Comment{ID: commentID, PlayerID: playerID, AuthorID: author, Body: body, CreatedAt: now}, nil
}

// Tag is a short label on a player, unique per (PlayerID, Label). Labels are
// stored lowercased.
type Tag struct {
	ID        id.TagID    `json:"id"`
	PlayerID  id.PlayerID `json:"player_id"`
	AuthorID  id.CallerID `json:"author_id"`
	Label     string      `json:"label"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewTag(tagID id.TagID, playerID id.PlayerID, author id.CallerID, label string, now time.Time) (*Tag, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tag label cannot be empty")
	}
	if len(label) > MaxTagLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tag must be 48 characters or less")
	}
	return &Tag{ID: tagID, PlayerID: playerID, AuthorID: author, Label: label, CreatedAt: now}, nil
}
