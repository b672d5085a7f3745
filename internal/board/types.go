// Package board models shop board posts and talks to the Cafe24 board API.
package board

import (
	"context"
	"time"
)

// ReplyStatus is the board's own answered marker for a post.
type ReplyStatus string

const (
	ReplyOpen       ReplyStatus = "N"
	ReplyInProgress ReplyStatus = "P"
	ReplyCompleted  ReplyStatus = "C"
)

// Post is a board article normalized from the Cafe24 payload.
type Post struct {
	ID          string      `json:"id"`
	BoardID     string      `json:"board_id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Author      string      `json:"author"`
	CreatedAt   time.Time   `json:"created_at"`
	ReplyCount  int         `json:"reply_count"`
	ParentID    *string     `json:"parent_id,omitempty"`
	ReplyDepth  int         `json:"reply_depth"`
	IsNotice    bool        `json:"is_notice"`
	ReplyStatus ReplyStatus `json:"reply_status,omitempty"`
}

// IsOriginal reports whether the post starts a thread rather than replying to one.
func (p Post) IsOriginal() bool {
	return p.ParentID == nil && p.ReplyDepth == 0
}

// Board is a board configured in the shop.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReplyResult describes a reply created on the board.
type ReplyResult struct {
	ReplyID   string    `json:"reply_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Gateway is the board service the bridge reads posts from and writes replies to.
type Gateway interface {
	ListBoards(ctx context.Context) ([]Board, error)
	ListPosts(ctx context.Context, boardID string, page, pageSize int) ([]Post, error)
	GetPost(ctx context.Context, boardID, postID string) (*Post, error)
	CreateReply(ctx context.Context, boardID, postID, content string) (*ReplyResult, error)
}
