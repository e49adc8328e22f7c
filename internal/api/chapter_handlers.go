package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/pagination"
	"github.com/quillpress/quill-server/internal/service"
)

// staleHeader names the ancestors a write could not touch, comma separated.
const staleHeader = "X-Stale-Ancestors"

func (s *Server) registerChapterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createChapter",
		Method:        http.MethodPost,
		Path:          "/api/v1/chapters",
		Summary:       "Create chapter",
		Description:   "Creates a chapter with the next number in its book",
		Tags:          []string{"Chapters"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateChapter)

	huma.Register(s.api, huma.Operation{
		OperationID: "getChapter",
		Method:      http.MethodGet,
		Path:        "/api/v1/chapters/{id}",
		Summary:     "Get chapter",
		Description: "Returns a chapter by ID or permalink",
		Tags:        []string{"Chapters"},
	}, s.handleGetChapter)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateChapter",
		Method:      http.MethodPatch,
		Path:        "/api/v1/chapters/{id}",
		Summary:     "Update chapter",
		Description: "Updates a chapter's name, content or volume",
		Tags:        []string{"Chapters"},
	}, s.handleUpdateChapter)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteChapter",
		Method:        http.MethodDelete,
		Path:          "/api/v1/chapters/{id}",
		Summary:       "Delete chapter",
		Description:   "Deletes a chapter. Its number is never reused.",
		Tags:          []string{"Chapters"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteChapter)
}

// === DTOs ===

// CreateChapterRequest is the request body for creating a chapter.
type CreateChapterRequest struct {
	BookID    string `json:"book_id" doc:"Book ID"`
	VolumeID  string `json:"volume_id" doc:"Volume ID; must belong to the book"`
	Name      string `json:"name" doc:"Chapter name"`
	Content   string `json:"content,omitempty" doc:"Chapter text"`
	Permalink string `json:"permalink,omitempty" doc:"Permalink; generated from the name when omitted"`
}

// CreateChapterInput wraps the create chapter request for Huma.
type CreateChapterInput struct {
	Body CreateChapterRequest
}

// ChapterOutput wraps a chapter for Huma.
type ChapterOutput struct {
	Stale string `header:"X-Stale-Ancestors"`
	Body  *domain.Chapter
}

// ChapterPageOutput wraps a page of chapter summaries for Huma.
type ChapterPageOutput struct {
	Body pagination.Page[domain.ChapterSummary]
}

// GetChapterInput contains parameters for getting a chapter.
type GetChapterInput struct {
	Ref string `path:"id" doc:"Chapter ID or permalink"`
}

// UpdateChapterRequest is the request body for updating a chapter. Omitted
// fields are left unchanged.
type UpdateChapterRequest struct {
	Name     *string `json:"name,omitempty" doc:"Chapter name"`
	Content  *string `json:"content,omitempty" doc:"Chapter text"`
	VolumeID *string `json:"volume_id,omitempty" doc:"Moves the chapter to another volume of the same book"`
}

// UpdateChapterInput wraps the update chapter request for Huma.
type UpdateChapterInput struct {
	ID   string `path:"id" doc:"Chapter ID"`
	Body UpdateChapterRequest
}

// DeleteChapterInput contains parameters for deleting a chapter.
type DeleteChapterInput struct {
	ID string `path:"id" doc:"Chapter ID"`
}

// DeleteChapterOutput carries the stale ancestors of a delete.
type DeleteChapterOutput struct {
	Stale string `header:"X-Stale-Ancestors"`
}

// === Handlers ===

func (s *Server) handleCreateChapter(ctx context.Context, input *CreateChapterInput) (*ChapterOutput, error) {
	ch, out, err := s.services.Chapters.CreateChapter(ctx, service.CreateChapterRequest{
		BookID:    input.Body.BookID,
		VolumeID:  input.Body.VolumeID,
		Name:      input.Body.Name,
		Content:   input.Body.Content,
		Permalink: input.Body.Permalink,
	})
	if err != nil {
		return nil, err
	}
	return &ChapterOutput{Stale: staleAncestors(out), Body: ch}, nil
}

func (s *Server) handleGetChapter(ctx context.Context, input *GetChapterInput) (*ChapterOutput, error) {
	ch, err := s.services.Chapters.GetChapter(ctx, input.Ref)
	if err != nil {
		return nil, err
	}
	return &ChapterOutput{Body: ch}, nil
}

func (s *Server) handleUpdateChapter(ctx context.Context, input *UpdateChapterInput) (*ChapterOutput, error) {
	ch, out, err := s.services.Chapters.UpdateChapter(ctx, input.ID, service.UpdateChapterRequest{
		Name:     input.Body.Name,
		Content:  input.Body.Content,
		VolumeID: input.Body.VolumeID,
	})
	if err != nil {
		return nil, err
	}
	return &ChapterOutput{Stale: staleAncestors(out), Body: ch}, nil
}

func (s *Server) handleDeleteChapter(ctx context.Context, input *DeleteChapterInput) (*DeleteChapterOutput, error) {
	out, err := s.services.Chapters.DeleteChapter(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteChapterOutput{Stale: staleAncestors(out)}, nil
}

func staleAncestors(out service.Outcome) string {
	var names []string
	if out.StaleVolume {
		names = append(names, "volume")
	}
	if out.StaleBook {
		names = append(names, "book")
	}
	return strings.Join(names, ",")
}
