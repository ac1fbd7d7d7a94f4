// Package handler provides HTTP request handlers for the todo API.
package handler

import "github.com/vyrodovalexey/restresource/internal/model"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// Publisher receives a change event after every successful write.
type Publisher interface {
	Publish(event model.ChangeEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.ChangeEvent) {}
