package backend

import (
	"context"
	"net/url"

	"messenger-gateway/model"

	"github.com/gofiber/fiber/v2"
)

func postPath(id string) string {
	return "/posts/" + url.PathEscape(id)
}

func (c *Client) ListPosts(ctx context.Context) ([]model.Post, error) {
	var list []model.Post
	if err := c.request(ctx, fiber.MethodGet, "/posts", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (model.Post, error) {
	var post model.Post
	err := c.request(ctx, fiber.MethodGet, postPath(id), nil, &post)
	return post, err
}

func (c *Client) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	var created model.Post
	err := c.request(ctx, fiber.MethodPost, "/posts", post, &created)
	return created, err
}

// UpdatePost replaces the whole document; the last writer wins.
func (c *Client) UpdatePost(ctx context.Context, post model.Post) (model.Post, error) {
	var updated model.Post
	err := c.request(ctx, fiber.MethodPut, postPath(post.Id), post, &updated)
	return updated, err
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.request(ctx, fiber.MethodDelete, postPath(id), nil, nil)
}
