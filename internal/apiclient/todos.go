package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Makepad-fr/tada/internal/model"
)

type createBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type statusBody struct {
	Status model.Status `json:"status"`
}

// ListTodos fetches every item of the current user.
func (c *Client) ListTodos(ctx context.Context) ([]model.Item, error) {
	r, err := c.jsonRequest("list todos", http.MethodGet, "/todos", nil, true, "Failed to fetch todos")
	if err != nil {
		return nil, err
	}
	var items []model.Item
	if err := c.do(ctx, r, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// CreateTodo creates an item; the returned item carries the server id.
func (c *Client) CreateTodo(ctx context.Context, title, description, imageURL string) (model.Item, error) {
	r, err := c.jsonRequest("create todo", http.MethodPost, "/todos", createBody{title, description, imageURL}, true, "Failed to add todo")
	if err != nil {
		return model.Item{}, err
	}
	var it model.Item
	err = c.do(ctx, r, &it)
	return it, err
}

// UpdateTodo patches the content fields present in cs. Status is ignored.
func (c *Client) UpdateTodo(ctx context.Context, id uint, cs model.ChangeSet) (model.Item, error) {
	r, err := c.jsonRequest("update todo", http.MethodPatch, fmt.Sprintf("/todos/%d", id), cs, true, "Failed to update todo content")
	if err != nil {
		return model.Item{}, err
	}
	var it model.Item
	err = c.do(ctx, r, &it)
	return it, err
}

// UpdateTodoStatus sets the status of an item.
func (c *Client) UpdateTodoStatus(ctx context.Context, id uint, status model.Status) (model.Item, error) {
	r, err := c.jsonRequest("update status", http.MethodPut, fmt.Sprintf("/todos/%d/status", id), statusBody{status}, true, "Failed to update status")
	if err != nil {
		return model.Item{}, err
	}
	var it model.Item
	err = c.do(ctx, r, &it)
	return it, err
}

// DeleteTodo removes an item.
func (c *Client) DeleteTodo(ctx context.Context, id uint) error {
	r, err := c.jsonRequest("delete todo", http.MethodDelete, fmt.Sprintf("/todos/%d", id), nil, true, "Failed to delete todo")
	if err != nil {
		return err
	}
	return c.do(ctx, r, nil)
}
