package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/contact"
	"github.com/trezcool/tutorhub/core/dashboard"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
	metricsvc "github.com/trezcool/tutorhub/services/metrics"
)

const maxUploadSize = 10 << 20 // 10 MiB

var errFileTooLarge = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file must not exceed 10 MiB"})

type handlers struct {
	validate   *validator.Validate
	logger     core.Logger
	metrics    *metricsvc.Metrics
	events     core.EventBroker
	auth       *authenticator
	usrSvc     user.Service
	profSvc    profile.Service
	classSvc   class.Service
	enrollSvc  enrollment.Service
	asgmtSvc   assignment.Service
	dashSvc    dashboard.Service
	contactSvc contact.Service
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	URLResponse struct {
		URL string `json:"url"`
	}
)

func (h *handlers) count(event string) {
	if h.metrics != nil {
		h.metrics.Count(event)
	}
}

// uploadedFile opens the multipart file sent under field.
func uploadedFile(ctx echo.Context, field string) (assignment.File, io.Closer, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return assignment.File{}, nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: "this field is required"})
		}
		return assignment.File{}, nil, errors.Wrap(err, "reading multipart form")
	}
	if fh.Size > maxUploadSize {
		return assignment.File{}, nil, errFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return assignment.File{}, nil, errors.Wrap(err, "opening uploaded file")
	}
	return assignment.File{
		Name:        fh.Filename,
		ContentType: contentType(fh),
		Size:        fh.Size,
		Content:     f,
	}, f, nil
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get(echo.HeaderContentType); ct != "" {
		return ct
	}
	return echo.MIMEOctetStream
}
