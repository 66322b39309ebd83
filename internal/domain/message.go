package domain

// Message is a single entry in a ticket's conversation thread.
type Message struct {
	ID         string `json:"id"`
	TicketID   string `json:"ticket_id"`
	AuthorRole Role   `json:"author_role"`
	AuthorID   string `json:"author_id"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"created_at"`
}

// AddMessageRequest is the inbound payload for posting to a ticket thread.
// AuthorRole is normalized before the message is persisted.
type AddMessageRequest struct {
	AuthorRole string `json:"author_role" validate:"required"`
	AuthorID   string `json:"author_id" validate:"required"`
	Body       string `json:"body" validate:"required,max=16384"`
}

func (r *AddMessageRequest) Validate() error {
	if r.AuthorID == "" || r.Body == "" {
		return ErrInvalidBody
	}
	return nil
}
