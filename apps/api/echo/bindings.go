package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
)

const (
	orderingParam    = "ordering"
	headerTotalCount = "X-Total-Count"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPagination reads `page` and `page_size`. Invalid values disable pagination.
func bindPagination(ctx echo.Context) core.Pagination {
	var page core.Pagination
	if err := echo.QueryParamsBinder(ctx).Int("page", &page.Page).Int("page_size", &page.PageSize).BindError(); err != nil {
		return core.Pagination{}
	}
	page.Clean()
	return page
}

// listResponse writes the total count of the query in the X-Total-Count header.
func listResponse(ctx echo.Context, total int, data interface{}) error {
	ctx.Response().Header().Set(headerTotalCount, strconv.Itoa(total))
	return ctx.JSON(http.StatusOK, data)
}

// formUpload returns the multipart `file` of the request, or nil if none was sent.
// The returned func closes the file.
func formUpload(ctx echo.Context) (*core.Upload, func(), error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, func() {}, nil
		}
		return nil, func() {}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "invalid file"})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "opening uploaded file")
	}
	up := &core.Upload{Filename: fh.Filename, Size: fh.Size, Reader: f}
	return up, func() { _ = f.Close() }, nil
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)
