package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/service"
)

func (s *Server) registerVolumeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createVolume",
		Method:        http.MethodPost,
		Path:          "/api/v1/volumes",
		Summary:       "Create volume",
		Description:   "Creates a volume in a book and touches the book",
		Tags:          []string{"Volumes"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateVolume)

	huma.Register(s.api, huma.Operation{
		OperationID: "getVolume",
		Method:      http.MethodGet,
		Path:        "/api/v1/volumes/{id}",
		Summary:     "Get volume",
		Description: "Returns a volume by ID",
		Tags:        []string{"Volumes"},
	}, s.handleGetVolume)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateVolume",
		Method:      http.MethodPatch,
		Path:        "/api/v1/volumes/{id}",
		Summary:     "Update volume",
		Description: "Renames a volume and touches its book",
		Tags:        []string{"Volumes"},
	}, s.handleUpdateVolume)

	huma.Register(s.api, huma.Operation{
		OperationID: "listVolumeChapters",
		Method:      http.MethodGet,
		Path:        "/api/v1/volumes/{id}/chapters",
		Summary:     "List volume chapters",
		Description: "Returns a page of a volume's chapters in number order",
		Tags:        []string{"Volumes", "Chapters"},
	}, s.handleListVolumeChapters)
}

// === DTOs ===

// CreateVolumeRequest is the request body for creating a volume.
type CreateVolumeRequest struct {
	BookID string `json:"book_id" doc:"Book ID or permalink"`
	Name   string `json:"name" doc:"Volume name"`
}

// CreateVolumeInput wraps the create volume request for Huma.
type CreateVolumeInput struct {
	Body CreateVolumeRequest
}

// VolumeOutput wraps a volume for Huma. Stale lists ancestors whose
// timestamps could not be updated.
type VolumeOutput struct {
	Stale string `header:"X-Stale-Ancestors"`
	Body  *domain.Volume
}

// GetVolumeInput contains parameters for getting a volume.
type GetVolumeInput struct {
	ID string `path:"id" doc:"Volume ID"`
}

// UpdateVolumeRequest is the request body for renaming a volume.
type UpdateVolumeRequest struct {
	Name string `json:"name" doc:"Volume name"`
}

// UpdateVolumeInput wraps the update volume request for Huma.
type UpdateVolumeInput struct {
	ID   string `path:"id" doc:"Volume ID"`
	Body UpdateVolumeRequest
}

// ListVolumeChaptersInput contains paging for a volume's chapters.
type ListVolumeChaptersInput struct {
	ID       string `path:"id" doc:"Volume ID"`
	Page     int    `query:"page" default:"1" doc:"Page number, starting at 1"`
	PageSize int    `query:"page_size" doc:"Items per page"`
}

// === Handlers ===

func (s *Server) handleCreateVolume(ctx context.Context, input *CreateVolumeInput) (*VolumeOutput, error) {
	vol, out, err := s.services.Volumes.CreateVolume(ctx, service.CreateVolumeRequest{
		BookID: input.Body.BookID,
		Name:   input.Body.Name,
	})
	if err != nil {
		return nil, err
	}
	return &VolumeOutput{Stale: staleAncestors(out), Body: vol}, nil
}

func (s *Server) handleGetVolume(ctx context.Context, input *GetVolumeInput) (*VolumeOutput, error) {
	vol, err := s.services.Volumes.GetVolume(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &VolumeOutput{Body: vol}, nil
}

func (s *Server) handleUpdateVolume(ctx context.Context, input *UpdateVolumeInput) (*VolumeOutput, error) {
	vol, out, err := s.services.Volumes.UpdateVolume(ctx, input.ID, service.UpdateVolumeRequest{
		Name: input.Body.Name,
	})
	if err != nil {
		return nil, err
	}
	return &VolumeOutput{Stale: staleAncestors(out), Body: vol}, nil
}

func (s *Server) handleListVolumeChapters(ctx context.Context, input *ListVolumeChaptersInput) (*ChapterPageOutput, error) {
	page, err := s.services.Chapters.ListChapters(ctx, input.ID, input.Page, input.PageSize)
	if err != nil {
		return nil, err
	}
	return &ChapterPageOutput{Body: page}, nil
}
