package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/service"
)

func (s *Server) registerReferenceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listGenres",
		Method:      http.MethodGet,
		Path:        "/api/v1/genres",
		Summary:     "List genres",
		Description: "Returns all genres ordered by name",
		Tags:        []string{"Genres"},
	}, s.handleListGenres)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createGenre",
		Method:        http.MethodPost,
		Path:          "/api/v1/genres",
		Summary:       "Create genre",
		Description:   "Creates a genre; its filter name is derived from the name",
		Tags:          []string{"Genres"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateGenre)

	huma.Register(s.api, huma.Operation{
		OperationID: "listStatuses",
		Method:      http.MethodGet,
		Path:        "/api/v1/statuses",
		Summary:     "List statuses",
		Description: "Returns all publication statuses",
		Tags:        []string{"Statuses"},
	}, s.handleListStatuses)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createStatus",
		Method:        http.MethodPost,
		Path:          "/api/v1/statuses",
		Summary:       "Create status",
		Description:   "Creates a publication status",
		Tags:          []string{"Statuses"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateStatus)
}

// === DTOs ===

// NameRequest is the request body for creating a genre or status.
type NameRequest struct {
	Name string `json:"name" doc:"Display name"`
}

// CreateNamedInput wraps a name request for Huma.
type CreateNamedInput struct {
	Body NameRequest
}

// GenreOutput wraps a genre for Huma.
type GenreOutput struct {
	Body *domain.Genre
}

// GenreListResponse contains all genres.
type GenreListResponse struct {
	Genres []*domain.Genre `json:"genres" doc:"Genres ordered by name"`
}

// GenreListOutput wraps the genre list for Huma.
type GenreListOutput struct {
	Body GenreListResponse
}

// StatusOutput wraps a status for Huma.
type StatusOutput struct {
	Body *domain.Status
}

// StatusListResponse contains all statuses.
type StatusListResponse struct {
	Statuses []*domain.Status `json:"statuses" doc:"Publication statuses"`
}

// StatusListOutput wraps the status list for Huma.
type StatusListOutput struct {
	Body StatusListResponse
}

// === Handlers ===

func (s *Server) handleListGenres(ctx context.Context, _ *struct{}) (*GenreListOutput, error) {
	genres, err := s.services.Reference.ListGenres(ctx)
	if err != nil {
		return nil, err
	}
	if genres == nil {
		genres = []*domain.Genre{}
	}
	return &GenreListOutput{Body: GenreListResponse{Genres: genres}}, nil
}

func (s *Server) handleCreateGenre(ctx context.Context, input *CreateNamedInput) (*GenreOutput, error) {
	g, err := s.services.Reference.CreateGenre(ctx, service.CreateGenreRequest{Name: input.Body.Name})
	if err != nil {
		return nil, err
	}
	return &GenreOutput{Body: g}, nil
}

func (s *Server) handleListStatuses(ctx context.Context, _ *struct{}) (*StatusListOutput, error) {
	statuses, err := s.services.Reference.ListStatuses(ctx)
	if err != nil {
		return nil, err
	}
	if statuses == nil {
		statuses = []*domain.Status{}
	}
	return &StatusListOutput{Body: StatusListResponse{Statuses: statuses}}, nil
}

func (s *Server) handleCreateStatus(ctx context.Context, input *CreateNamedInput) (*StatusOutput, error) {
	st, err := s.services.Reference.CreateStatus(ctx, service.CreateStatusRequest{Name: input.Body.Name})
	if err != nil {
		return nil, err
	}
	return &StatusOutput{Body: st}, nil
}
