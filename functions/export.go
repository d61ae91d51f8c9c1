package functions

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/services"
)

// ExportHandler serves reviews as a CSV attachment or a JSON array.
func ExportHandler(exp services.Exporter, token string, log logrus.FieldLogger) Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return RequireToken(token, func(ctx context.Context, req Request) Response {
		if req.Method != http.MethodGet {
			return textResponse(http.StatusMethodNotAllowed, "Method not allowed")
		}

		q, err := services.ParseExportQuery(req.Query)
		if err != nil {
			return errorResponse(http.StatusBadRequest, err.Error())
		}

		res, err := exp.Export(ctx, q)
		if err != nil {
			log.WithError(err).Error("review export failed")
			return errorResponse(http.StatusInternalServerError, "export failed")
		}

		return ExportResponse(res)
	})
}

// ExportResponse renders an export result with its download headers.
func ExportResponse(res *services.ExportResult) Response {
	header := map[string]string{"Content-Type": res.ContentType}
	if res.Filename != "" {
		header["Content-Disposition"] = fmt.Sprintf(`attachment; filename="%s"`, res.Filename)
	}
	if res.ArchiveKey != "" {
		header[services.ArchiveKeyHeader] = res.ArchiveKey
	}
	return Response{Status: http.StatusOK, Header: header, Body: res.Body}
}
