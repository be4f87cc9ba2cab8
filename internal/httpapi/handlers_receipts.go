package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/authz"
	"gitlab.com/yelinaung/expense-approvals/internal/gemini"
)

// receiptField is the multipart form field carrying the image.
const receiptField = "receipt"

// handleParseReceipt turns a receipt image into a submission draft. The image
// is either a multipart "receipt" file or the raw request body.
func (s *Server) handleParseReceipt(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := authz.Require(user, authz.ActionParseReceipt, authz.Owned(user.CompanyID, user.ID)); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.receipts == nil {
		writeProblem(w, http.StatusServiceUnavailable, "unavailable", "receipt parsing is not configured")
		return
	}

	image, mimeType, err := readReceipt(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	draft, err := s.receipts.ParseReceipt(r.Context(), image, mimeType)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toReceiptDraftJSON(draft))
	case errors.Is(err, gemini.ErrEmptyImage), errors.Is(err, gemini.ErrNoData):
		writeProblem(w, http.StatusUnprocessableEntity, "invalid", err.Error())
	case errors.Is(err, gemini.ErrParseTimeout):
		writeProblem(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		s.writeError(w, r, err)
	}
}

func readReceipt(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	body := http.MaxBytesReader(w, r.Body, MaxReceiptBytes)
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		r.Body = body
		if err := r.ParseMultipartForm(MaxReceiptBytes); err != nil {
			return nil, "", approval.Invalid("malformed multipart body: %v", err)
		}
		file, header, err := r.FormFile(receiptField)
		if err != nil {
			return nil, "", approval.Invalid("missing %q file", receiptField)
		}
		defer func() { _ = file.Close() }()
		image, err := io.ReadAll(file)
		if err != nil {
			return nil, "", approval.Invalid("failed to read receipt: %v", err)
		}
		return image, header.Header.Get("Content-Type"), nil
	}

	image, err := io.ReadAll(body)
	if err != nil {
		return nil, "", approval.Invalid("failed to read receipt: %v", err)
	}
	if len(image) == 0 {
		return nil, "", approval.Invalid("receipt image is required")
	}
	if contentType == "" {
		contentType = http.DetectContentType(image)
	}
	return image, contentType, nil
}
