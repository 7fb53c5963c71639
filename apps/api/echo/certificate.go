package echoapi

import (
	"io"
	"net/http"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/certificate"
	"github.com/trezcool/hackcamp/core/user"
)

var errCertNotFoundInCtx = errors.New("certificate object not found in echo.Context")

type certificateApi struct {
	svc      certificate.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerCertificateAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc certificate.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := certificateApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	// admin
	ag := g.Group("/admin/certificates", jwt, adminMiddleware())
	ag.GET("", api.query)
	ag.POST("", api.create)

	dg := ag.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/file", api.upload)
	dg.POST("/generate", api.generate)

	// participants
	pg := g.Group("/certificates", jwt)
	pg.GET("/me", api.mine)
	pg.GET("/:id/download", api.download)
}

func (api *certificateApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		cert, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding certificate")
		}
		ctx.Set("object", cert)
		return next(ctx)
	}
}

func ctxCertificate(ctx echo.Context) (certificate.Certificate, error) {
	cert, ok := ctx.Get("object").(certificate.Certificate)
	if !ok {
		return certificate.Certificate{}, errors.Wrap(errCertNotFoundInCtx, "retrieving object from context")
	}
	return cert, nil
}

func (api *certificateApi) create(ctx echo.Context) error {
	var data certificate.NewCertificate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCertificate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	issuer, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cert, err := api.svc.Create(ctx.Request().Context(), data, issuer)
	if err != nil {
		return errors.Wrap(err, "creating certificate")
	}
	return ctx.JSON(http.StatusCreated, cert)
}

func (api *certificateApi) query(ctx echo.Context) error {
	filter := new(certificate.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return listResponse(ctx, 0, []certificate.Certificate{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	certs, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	return listResponse(ctx, total, certs)
}

func (api *certificateApi) retrieve(ctx echo.Context) error {
	cert, err := ctxCertificate(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) update(ctx echo.Context) error {
	cert, err := ctxCertificate(ctx)
	if err != nil {
		return err
	}

	var data certificate.UpdateCertificate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCertificate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if cert, err = api.svc.Update(ctx.Request().Context(), cert, data); err != nil {
		return errors.Wrap(err, "updating certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) destroy(ctx echo.Context) error {
	cert, err := ctxCertificate(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), cert.ID); err != nil {
		return errors.Wrap(err, "deleting certificate")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *certificateApi) upload(ctx echo.Context) error {
	cert, err := ctxCertificate(ctx)
	if err != nil {
		return err
	}

	up, closeFile, err := formUpload(ctx)
	if err != nil {
		return err
	}
	defer closeFile()
	if up == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}

	if cert, err = api.svc.Upload(ctx.Request().Context(), cert.ID, *up); err != nil {
		return errors.Wrap(err, "uploading certificate file")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) generate(ctx echo.Context) error {
	cert, err := ctxCertificate(ctx)
	if err != nil {
		return err
	}
	if cert, err = api.svc.GeneratePDF(ctx.Request().Context(), cert.ID); err != nil {
		return errors.Wrap(err, "generating certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	certs, err := api.svc.ListForUser(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

// download streams the certificate's file, or redirects to its link when it has no file.
func (api *certificateApi) download(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cert, err := api.svc.Download(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "downloading certificate")
	}
	if !cert.HasFile() {
		return ctx.Redirect(http.StatusFound, cert.LinkURL)
	}

	rc, err := api.svc.OpenFile(ctx.Request().Context(), cert)
	if err != nil {
		return errors.Wrap(err, "opening certificate file")
	}
	defer rc.Close()

	return streamFile(ctx, "certificate-"+cert.ID, cert.FileKey, rc)
}

// streamFile sends a stored file as an attachment, typed from its key and never sniffed by the browser.
func streamFile(ctx echo.Context, name, key string, r io.Reader) error {
	h := ctx.Response().Header()
	h.Set(echo.HeaderContentDisposition, attachment(name+path.Ext(key)))
	h.Set(echo.HeaderXContentTypeOptions, "nosniff")
	return ctx.Stream(http.StatusOK, core.ContentTypeOf(key), r)
}
