package dto

import "time"

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

type ProjectResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
