package tests

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core/certificate"
	testutil "github.com/trezcool/hackcamp/tests"
)

var pngHead = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func Test_certificateApi_create(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateAdmin(t, app.UserRepo)
	instr := testutil.CreateInstructor(t, app.UserRepo)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	adminToken := app.getToken(t, admin)

	body := func(userID, title string) []byte {
		return marchallObj(t, certificate.NewCertificate{UserID: userID, Title: title})
	}

	runTests(t, app, []httpTest{
		{name: "instructor", method: http.MethodPost, path: "/api/admin/certificates", token: app.getToken(t, instr), body: body(hero.ID, "Backend"),
			wantCode: http.StatusForbidden},
		{name: "invalid", method: http.MethodPost, path: "/api/admin/certificates", token: adminToken, body: body("nope", " "), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"user_id":"user_id must be a valid UUID","title":"this field is required"}`)},
		{name: "not a participant", method: http.MethodPost, path: "/api/admin/certificates", token: adminToken, body: body(instr.ID, "Backend"),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"user_id":"user must be a participant"}`)},
	})

	t.Run("success", func(t *testing.T) {
		app.Mail.Flush()
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/certificates", adminToken, body(hero.ID, "Backend Track"))
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var cert certificate.Certificate
		unmarshal(t, rec, &cert)
		assert.Equal(t, hero.ID, cert.UserID)
		assert.Equal(t, admin.ID, cert.IssuedBy)
		assert.False(t, cert.IssuedAt.IsZero())
		assert.Empty(t, cert.FileURL)

		sent := app.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, hero.Email, sent[0].To[0].Address)

		req, rec = newAuthRequest(http.MethodGet, "/api/certificates/me", app.getToken(t, hero))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, cert)}, rec)
	})
}

func Test_certificateApi_files(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateAdmin(t, app.UserRepo)
	hero := testutil.CreateParticipant(t, app.UserRepo, "hero01")
	other := testutil.CreateParticipant(t, app.UserRepo, "other01")
	adminToken := app.getToken(t, admin)
	heroToken := app.getToken(t, hero)

	create := func(linkURL string) certificate.Certificate {
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/certificates", adminToken,
			marchallObj(t, certificate.NewCertificate{UserID: hero.ID, Title: "Backend Track", LinkURL: linkURL}))
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var cert certificate.Certificate
		unmarshal(t, rec, &cert)
		return cert
	}

	bare := create("")
	linked := create("https://certs.example.com/abc")
	generated := create("")
	uploaded := create("")

	runTests(t, app, []httpTest{
		{name: "no file nor link", method: http.MethodGet, path: "/api/certificates/" + bare.ID + "/download", token: heroToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "certificate has no file"})},
		{name: "not the owner", method: http.MethodGet, path: "/api/certificates/" + linked.ID + "/download", token: app.getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "unknown", method: http.MethodGet, path: "/api/certificates/nope/download", token: heroToken, wantCode: http.StatusNotFound},
		{name: "generate unknown", method: http.MethodPost, path: "/api/admin/certificates/nope/generate", token: adminToken, wantCode: http.StatusNotFound},
	})

	t.Run("link redirect", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/certificates/"+linked.ID+"/download", heroToken)
		app.serve(req, rec)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://certs.example.com/abc", rec.Header().Get("Location"))
	})

	t.Run("generate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/certificates/"+generated.ID+"/generate", adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var cert certificate.Certificate
		unmarshal(t, rec, &cert)
		assert.Contains(t, cert.FileKey, "certificates/"+generated.ID+"/")
		assert.True(t, strings.HasSuffix(cert.FileKey, ".pdf"), cert.FileKey)
		assert.Empty(t, cert.FileURL, "local files are only served through the download endpoint")

		req, rec = newRequest(http.MethodGet, "/media/"+cert.FileKey)
		app.serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		for _, token := range []string{heroToken, adminToken} {
			req, rec = newAuthRequest(http.MethodGet, "/api/certificates/"+generated.ID+"/download", token)
			app.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "certificate-"+generated.ID+".pdf")
			assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
		}
	})

	t.Run("upload", func(t *testing.T) {
		path := "/api/admin/certificates/" + uploaded.ID + "/file"

		req, rec := newUploadRequest(t, http.MethodPost, path, adminToken, "", nil, nil)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"file":"this field is required"}`)}, rec)

		req, rec = newUploadRequest(t, http.MethodPost, path, adminToken, "cert.txt", []byte("just some text"), nil)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"file":"unsupported file type text/plain"}`)}, rec)

		req, rec = newUploadRequest(t, http.MethodPost, path, adminToken, "cert.PNG", pngHead, nil)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/api/certificates/"+uploaded.ID+"/download", heroToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, pngHead, rec.Body.Bytes())
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/admin/certificates/"+uploaded.ID, adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/api/admin/certificates/"+uploaded.ID, adminToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "certificate not found"})}, rec)
	})
}
