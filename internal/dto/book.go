package dto

import "github.com/ogvapps/biblioclasificador/internal/models"

// CreateBookRequest captures payload to register a catalog entry.
type CreateBookRequest struct {
	Title      string  `json:"title" validate:"required"`
	Author     string  `json:"author" validate:"required"`
	Stage      string  `json:"stage" validate:"required"`
	Genre      string  `json:"genre" validate:"required"`
	Age        int     `json:"age" validate:"gte=0,lte=18"`
	CoverImage *string `json:"cover_image,omitempty"`
	Column     *int    `json:"column,omitempty" validate:"omitempty,gte=1"`
	Shelf      *int    `json:"shelf,omitempty" validate:"omitempty,gte=1"`
	Synopsis   *string `json:"synopsis,omitempty"`
}

// UpdateBookRequest captures editable catalog fields. Circulation fields are
// never writable through this path.
type UpdateBookRequest struct {
	Title      *string `json:"title,omitempty"`
	Author     *string `json:"author,omitempty"`
	Stage      *string `json:"stage,omitempty"`
	Genre      *string `json:"genre,omitempty"`
	Age        *int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=18"`
	CoverImage *string `json:"cover_image,omitempty"`
	Column     *int    `json:"column,omitempty" validate:"omitempty,gte=1"`
	Shelf      *int    `json:"shelf,omitempty" validate:"omitempty,gte=1"`
	Synopsis   *string `json:"synopsis,omitempty"`
}

// BookResponse decorates a catalog entry with its derived circulation status.
type BookResponse struct {
	models.Book
	Status models.CirculationStatus `json:"status"`
}

// NewBookResponse builds the response shape for a single book.
func NewBookResponse(book models.Book) BookResponse {
	return BookResponse{Book: book, Status: book.CirculationStatus()}
}

// NewBookResponses maps a slice of books into responses.
func NewBookResponses(books []models.Book) []BookResponse {
	responses := make([]BookResponse, 0, len(books))
	for _, book := range books {
		responses = append(responses, NewBookResponse(book))
	}
	return responses
}
