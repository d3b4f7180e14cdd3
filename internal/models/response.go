package models

// SendDataResponse is the success body of the concept map endpoints.
type SendDataResponse struct {
	Success bool   `json:"success"`
	Graph   *Graph `json:"graph"`
}

// ErrorResponse is the failure body of the concept map endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
