package model

import "time"

// DoubtRequest is one chat message from a learner.
type DoubtRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// DoubtResponse is the assistant's reply.
type DoubtResponse struct {
	Reply     string    `json:"reply"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
