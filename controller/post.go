package controller

import (
	"time"

	"messenger-gateway/model"
	"messenger-gateway/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CommentInput struct {
	Text string `json:"text" validate:"required,max=1000"`
}

func (h *Handler) PostList(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	posts, err := s.Posts().ListPosts(c.UserContext())
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusOK, posts)
}

func (h *Handler) PostGet(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	post, err := s.Posts().GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusOK, post)
}

func (h *Handler) PostCreate(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	post := new(model.Post)
	if err := h.parse(c, post); err != nil {
		return failWith(c, err)
	}

	identity := s.Identity()
	now := time.Now().UTC()
	post.Id = ""
	post.AuthorId = identity.UserId
	post.AuthorName = identity.Name
	post.Likes = []string{}
	post.Comments = []model.Comment{}
	post.CreatedAt, post.UpdatedAt = now, now

	created, err := s.Posts().CreatePost(c.UserContext(), *post)
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusCreated, created)
}

// PostUpdate replaces the editable fields of a post owned by the caller.
// Likes and comments are kept from the stored document.
func (h *Handler) PostUpdate(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	input := new(model.Post)
	if err := h.parse(c, input); err != nil {
		return failWith(c, err)
	}

	post, err := s.Posts().GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return failWith(c, err)
	}

	// Ensure the user updating the post is the owner
	if post.AuthorId != s.UserId() {
		return fail(c, fiber.StatusForbidden, "You are not authorized to update this post")
	}

	post.Title = input.Title
	post.Description = input.Description
	post.Price = input.Price
	post.Location = input.Location
	post.Category = input.Category
	post.Images = input.Images
	post.UpdatedAt = time.Now().UTC()

	saved, err := s.Posts().UpdatePost(c.UserContext(), post)
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusOK, saved)
}

func (h *Handler) PostDelete(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	post, err := s.Posts().GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return failWith(c, err)
	}

	// Ensure the user deleting the post is the owner
	if post.AuthorId != s.UserId() {
		return fail(c, fiber.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := s.Posts().DeletePost(c.UserContext(), post.Id); err != nil {
		return failWith(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PostLike toggles the like of the caller.
func (h *Handler) PostLike(c *fiber.Ctx) error {
	return h.mutatePost(c, func(s *session.Session, post *model.Post) (any, error) {
		liked := post.ToggleLike(s.UserId())
		return fiber.Map{"liked": liked, "likes": len(post.Likes)}, nil
	})
}

func (h *Handler) CommentAdd(c *fiber.Ctx) error {
	input := new(CommentInput)
	if err := h.parse(c, input); err != nil {
		return failWith(c, err)
	}

	return h.mutatePost(c, func(s *session.Session, post *model.Post) (any, error) {
		comment := model.Comment{
			Id:         uuid.NewString(),
			AuthorId:   s.UserId(),
			AuthorName: s.Identity().Name,
			Text:       input.Text,
			Likes:      []string{},
			Replies:    []model.Reply{},
			CreatedAt:  time.Now().UTC(),
		}
		post.AddComment(comment)
		return comment, nil
	})
}

func (h *Handler) CommentEdit(c *fiber.Ctx) error {
	input := new(CommentInput)
	if err := h.parse(c, input); err != nil {
		return failWith(c, err)
	}

	return h.mutatePost(c, func(s *session.Session, post *model.Post) (any, error) {
		i := post.CommentIndex(c.Params("cid"))
		if i < 0 {
			return nil, errCommentNotFound
		}
		if post.Comments[i].AuthorId != s.UserId() {
			return nil, errNotCommentAuthor
		}
		post.EditComment(c.Params("cid"), input.Text)
		return post.Comments[i], nil
	})
}

func (h *Handler) CommentDelete(c *fiber.Ctx) error {
	return h.mutatePost(c, func(s *session.Session, post *model.Post) (any, error) {
		i := post.CommentIndex(c.Params("cid"))
		if i < 0 {
			return nil, errCommentNotFound
		}
		// The post owner may remove any comment.
		if post.Comments[i].AuthorId != s.UserId() && post.AuthorId != s.UserId() {
			return nil, errNotCommentAuthor
		}
		post.RemoveComment(c.Params("cid"))
		return nil, nil
	})
}

func (h *Handler) ReplyAdd(c *fiber.Ctx) error {
	input := new(CommentInput)
	if err := h.parse(c, input); err != nil {
		return failWith(c, err)
	}

	return h.mutatePost(c, func(s *session.Session, post *model.Post) (any, error) {
		reply := model.Reply{
			Id:         uuid.NewString(),
			AuthorId:   s.UserId(),
			AuthorName: s.Identity().Name,
			Text:       input.Text,
			CreatedAt:  time.Now().UTC(),
		}
		if !post.AddReply(c.Params("cid"), reply) {
			return nil, errCommentNotFound
		}
		return reply, nil
	})
}

func (h *Handler) CommentLike(c *fiber.Ctx) error {
	return h.mutatePost(c, func(s *session.Session, post *model.Post) (any, error) {
		if !post.ToggleCommentLike(c.Params("cid"), s.UserId()) {
			return nil, errCommentNotFound
		}
		comment := post.Comments[post.CommentIndex(c.Params("cid"))]
		return fiber.Map{"liked": comment.LikedBy(s.UserId()), "likes": len(comment.Likes)}, nil
	})
}

// mutatePost fetches the post, applies fn and writes the whole document
// back. Concurrent writers overwrite each other.
func (h *Handler) mutatePost(c *fiber.Ctx, fn func(s *session.Session, post *model.Post) (any, error)) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	post, err := s.Posts().GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return failWith(c, err)
	}

	result, err := fn(s, &post)
	switch err {
	case nil:
	case errCommentNotFound:
		return fail(c, fiber.StatusNotFound, "Comment not found")
	case errNotCommentAuthor:
		return fail(c, fiber.StatusForbidden, "You are not authorized to change this comment")
	default:
		return failWith(c, err)
	}

	if _, err := s.Posts().UpdatePost(c.UserContext(), post); err != nil {
		return failWith(c, err)
	}
	if result == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return success(c, fiber.StatusOK, result)
}
