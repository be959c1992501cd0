package v1

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	verrors "github.com/hrygo/stockwear/server/internal/errors"
	"github.com/hrygo/stockwear/server/service/vision"
)

// maxReferenceImageSize bounds reference uploads.
const maxReferenceImageSize = 10 << 20

// ConfirmVisualMatchRequest turns a confirmed capture into a new reference vector.
type ConfirmVisualMatchRequest struct {
	ProductID int32     `json:"productId"`
	Embedding []float32 `json:"embedding"`
}

// ConfirmVisualMatch stores the query vector of a confirmed match for the product.
// POST /api/v1/recognition/confirm
func (s *APIV1Service) ConfirmVisualMatch(c echo.Context) error {
	var request ConfirmVisualMatchRequest
	if err := c.Bind(&request); err != nil {
		return writeError(c, verrors.InvalidArgument("invalid request body"))
	}
	embedding, err := s.References.ConfirmVisualMatch(c.Request().Context(), tenantFrom(c), request.ProductID, request.Embedding)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, embedding)
}

// UploadReferenceImage stores and embeds a reference photo sent as multipart field "file".
// POST /api/v1/products/:id/reference-images
func (s *APIV1Service) UploadReferenceImage(c echo.Context) error {
	productID, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	header, err := c.FormFile("file")
	if err != nil {
		return writeError(c, verrors.InvalidArgument("multipart field \"file\" is required"))
	}
	if header.Size > maxReferenceImageSize {
		return writeError(c, verrors.InvalidArgument("reference image is too large"))
	}
	file, err := header.Open()
	if err != nil {
		return writeError(c, verrors.Wrap(err, verrors.ErrCodeInvalidArgument, "cannot read upload"))
	}
	defer file.Close()
	blob, err := io.ReadAll(io.LimitReader(file, maxReferenceImageSize+1))
	if err != nil {
		return writeError(c, verrors.Wrap(err, verrors.ErrCodeInvalidArgument, "cannot read upload"))
	}

	mimeType := header.Header.Get(echo.HeaderContentType)
	if mimeType == "" || mimeType == echo.MIMEOctetStream {
		mimeType = http.DetectContentType(blob)
	}
	result, err := s.References.UploadReferenceImage(c.Request().Context(), &vision.UploadReferenceRequest{
		TenantID:  tenantFrom(c),
		ProductID: productID,
		Blob:      blob,
		Filename:  header.Filename,
		MimeType:  mimeType,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// DeleteReferenceImage removes a reference photo and its embeddings.
// DELETE /api/v1/reference-images/:id
func (s *APIV1Service) DeleteReferenceImage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.References.DeleteReferenceImage(c.Request().Context(), tenantFrom(c), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RegenerateProductEmbeddings re-embeds every reference photo of a product.
// POST /api/v1/products/:id/embeddings
func (s *APIV1Service) RegenerateProductEmbeddings(c echo.Context) error {
	productID, err := pathID(c)
	if err != nil {
		return writeError(c, err)
	}
	report, err := s.References.RegenerateProductEmbeddings(c.Request().Context(), tenantFrom(c), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
