package domain

// Message is a single rendered conversation entry. Timestamp is epoch
// milliseconds. Model is only set on assistant entries.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Model     string `json:"model,omitempty"`
}

// ValidationResult reports whether a credential was accepted upstream.
type ValidationResult struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message,omitempty"`
}
