package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/breatheroute/airdash/internal/api/models"
	"github.com/breatheroute/airdash/internal/api/response"
	"github.com/breatheroute/airdash/internal/notice"
)

// NoticeHandler exposes the transient notice board.
type NoticeHandler struct {
	board *notice.Board
}

// NewNoticeHandler creates a NoticeHandler.
func NewNoticeHandler(board *notice.Board) *NoticeHandler {
	return &NoticeHandler{board: board}
}

// List handles GET /v1/notices.
func (h *NoticeHandler) List(w http.ResponseWriter, r *http.Request) {
	active := h.board.Active()
	list := models.NoticeList{Notices: make([]models.Notice, 0, len(active))}
	for _, n := range active {
		list.Notices = append(list.Notices, toNotice(n))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// Post handles POST /v1/notices. Clients use it to report failures that
// happen on their side, such as a rejected clipboard write.
func (h *NoticeHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req models.NoticeRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, r, "invalid request body: "+err.Error(), nil)
		return
	}

	var errs []models.FieldError
	kind, ok := notice.ParseKind(req.Kind)
	if !ok {
		errs = append(errs, models.FieldError{Field: "kind", Message: "unknown notice kind", Code: "INVALID"})
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		errs = append(errs, models.FieldError{Field: "message", Message: "message is required", Code: "REQUIRED"})
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid notice", errs)
		return
	}

	n := h.board.Post(kind, msg)
	response.Created(w, r, "/v1/notices/"+n.ID, toNotice(n))
}

// Dismiss handles DELETE /v1/notices/{id}.
func (h *NoticeHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if !h.board.Dismiss(chi.URLParam(r, "id")) {
		response.NotFound(w, r, "notice not found")
		return
	}
	response.NoContent(w, r)
}

func toNotice(n notice.Notice) models.Notice {
	return models.Notice{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Message:   n.Message,
		CreatedAt: models.Timestamp(n.CreatedAt),
		ExpiresAt: models.Timestamp(n.ExpiresAt),
	}
}
