package model

import "time"

type Account struct {
	ID           string    `json:"id"`
	Identifier   string    `json:"identifier"`
	DisplayName  string    `json:"display_name"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public strips the password hash.
func (a Account) Public() PublicAccount {
	return PublicAccount{ID: a.ID, Identifier: a.Identifier, DisplayName: a.DisplayName}
}

// PublicAccount is the part of an account that may leave the server.
type PublicAccount struct {
	ID          string `json:"id" cbor:"1,keyasint"`
	Identifier  string `json:"identifier" cbor:"2,keyasint"`
	DisplayName string `json:"display_name" cbor:"3,keyasint"`
}

type Post struct {
	ID          string         `json:"id" cbor:"1,keyasint"`
	Title       string         `json:"title" cbor:"2,keyasint"`
	Content     string         `json:"content" cbor:"3,keyasint"`
	ContentHTML string         `json:"content_html,omitempty" cbor:"-"`
	AuthorID    string         `json:"author_id" cbor:"4,keyasint"`
	Author      *PublicAccount `json:"author,omitempty" cbor:"5,keyasint,omitempty"`
	Comments    []Comment      `json:"comments" cbor:"6,keyasint"`
	Likes       []string       `json:"likes" cbor:"7,keyasint"`
	CreatedAt   time.Time      `json:"created_at" cbor:"8,keyasint"`
	UpdatedAt   time.Time      `json:"updated_at" cbor:"9,keyasint"`
}

// HasLike reports whether accountID is in the like set.
func (p Post) HasLike(accountID string) bool {
	for _, id := range p.Likes {
		if id == accountID {
			return true
		}
	}
	return false
}

// Comment has no identity of its own; its position in Post.Comments is
// its display order.
type Comment struct {
	AuthorID  string    `json:"author_id" cbor:"1,keyasint"`
	Text      string    `json:"text" cbor:"2,keyasint"`
	CreatedAt time.Time `json:"created_at" cbor:"3,keyasint"`
}

// LikeState is the membership of one account in one post's like set.
type LikeState int

const (
	NotLiked LikeState = iota
	Liked
	Unliked
)

func (s LikeState) String() string {
	switch s {
	case Liked:
		return "liked"
	case Unliked:
		return "unliked"
	default:
		return "not_liked"
	}
}

type PostPage struct {
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Posts []Post `json:"posts"`
}
