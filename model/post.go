package model

import (
	"slices"
	"time"
)

// Post is a listing. It is fetched and persisted as a whole document, so
// concurrent editors overwrite each other.
type Post struct {
	Id          string    `json:"id"`
	AuthorId    string    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	Title       string    `json:"title" validate:"required,max=120"`
	Description string    `json:"description" validate:"max=5000"`
	Price       float64   `json:"price" validate:"gte=0"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	Images      []string  `json:"images" validate:"dive,url"`
	Likes       []string  `json:"likes"`
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Comment struct {
	Id         string    `json:"id"`
	AuthorId   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	Likes      []string  `json:"likes"`
	Replies    []Reply   `json:"replies"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Reply struct {
	Id         string    `json:"id"`
	AuthorId   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LikedBy reports whether userId likes the post.
func (p Post) LikedBy(userId string) bool {
	return slices.Contains(p.Likes, userId)
}

// ToggleLike adds or removes the like of userId and reports whether the
// post is liked afterwards.
func (p *Post) ToggleLike(userId string) bool {
	p.Likes = toggle(p.Likes, userId)
	return p.LikedBy(userId)
}

func (c Comment) LikedBy(userId string) bool {
	return slices.Contains(c.Likes, userId)
}

func (p *Post) AddComment(c Comment) {
	p.Comments = append(p.Comments, c)
}

func (p *Post) CommentIndex(id string) int {
	return slices.IndexFunc(p.Comments, func(c Comment) bool { return c.Id == id })
}

// EditComment replaces the text of a comment. It reports false when the
// comment does not exist.
func (p *Post) EditComment(id string, text string) bool {
	i := p.CommentIndex(id)
	if i < 0 {
		return false
	}
	p.Comments[i].Text = text
	return true
}

func (p *Post) RemoveComment(id string) bool {
	i := p.CommentIndex(id)
	if i < 0 {
		return false
	}
	p.Comments = slices.Delete(p.Comments, i, i+1)
	return true
}

func (p *Post) AddReply(commentId string, r Reply) bool {
	i := p.CommentIndex(commentId)
	if i < 0 {
		return false
	}
	p.Comments[i].Replies = append(p.Comments[i].Replies, r)
	return true
}

// ToggleCommentLike flips the like of userId on a comment.
func (p *Post) ToggleCommentLike(commentId string, userId string) bool {
	i := p.CommentIndex(commentId)
	if i < 0 {
		return false
	}
	p.Comments[i].Likes = toggle(p.Comments[i].Likes, userId)
	return true
}

func toggle(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(slices.Clone(ids), i, i+1)
	}
	return append(slices.Clone(ids), id)
}
