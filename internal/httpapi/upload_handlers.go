package httpapi

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rgaros/fixline/internal/eventlog"
	"github.com/rgaros/fixline/internal/speech"
)

const uploadDir = "uploads"

var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// handleUploadPage serves the upload form for a valid token.
func (r *Router) handleUploadPage(w http.ResponseWriter, req *http.Request) {
	token := req.PathValue("token")

	tok, err := r.store.GetUploadToken(req.Context(), token)
	if err != nil {
		captureError(req, err, "get upload token")
		r.renderErrorPage(w, http.StatusInternalServerError, "Something Went Wrong", "There was an error loading this page. Please try again.")
		return
	}
	if tok == nil {
		r.renderErrorPage(w, http.StatusNotFound, "Invalid Link", "This upload link is invalid.")
		return
	}
	if !tok.Valid(nowUTC()) {
		r.renderErrorPage(w, http.StatusGone, "Link Expired or Used", "This upload link has expired or already been used.")
		return
	}

	r.renderPage(w, http.StatusOK, uploadFormTmpl, map[string]any{
		"Appliance": tok.Appliance,
		"Token":     token,
	})
}

// handleUploadSubmit receives the photo, runs the vision analysis and
// records the result for the waiting call to pick up.
func (r *Router) handleUploadSubmit(w http.ResponseWriter, req *http.Request) {
	token := req.PathValue("token")

	tok, err := r.store.GetUploadToken(req.Context(), token)
	if err != nil {
		captureError(req, err, "get upload token")
		r.renderErrorPage(w, http.StatusInternalServerError, "Something Went Wrong", "There was an error processing your image. Please try again.")
		return
	}
	if tok == nil {
		r.renderErrorPage(w, http.StatusNotFound, "Invalid Link", "This upload link is invalid.")
		return
	}
	if !tok.Valid(nowUTC()) {
		r.renderErrorPage(w, http.StatusGone, "Link Expired or Used", "This upload link has expired or already been used.")
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes)
	file, header, err := req.FormFile("image")
	if err != nil {
		r.renderErrorPage(w, http.StatusBadRequest, "Upload Failed", "No image was received. Please choose a photo and try again.")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		r.renderErrorPage(w, http.StatusBadRequest, "Invalid File Type",
			fmt.Sprintf("Please upload a JPEG, PNG, or WebP image. You uploaded: %s", contentType))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		r.renderErrorPage(w, http.StatusInternalServerError, "Upload Failed", "There was an error processing your image. Please try again.")
		return
	}

	if err := os.MkdirAll(uploadDir, 0o755); err == nil {
		path := filepath.Join(uploadDir, token+"."+ext)
		if writeErr := os.WriteFile(path, data, 0o644); writeErr != nil {
			r.logger.Printf("upload: failed to save image for token %s: %v", token, writeErr)
		}
	}

	if err := r.store.MarkTokenUsed(req.Context(), token, filepath.Join(uploadDir, token+"."+ext)); err != nil {
		captureError(req, err, "mark token used")
		r.renderErrorPage(w, http.StatusInternalServerError, "Upload Failed", "There was an error processing your image. Please try again.")
		return
	}
	r.eventLog.LogAsync(tok.CallID, eventlog.EventUploadReceived, map[string]any{
		"size": len(data), "content_type": contentType,
	})

	analysis := r.vision.Analyze(req.Context(), data, contentType, speech.Appliance(tok.Appliance), tok.SymptomSummary)

	if err := r.store.UpdateTokenAnalysis(req.Context(), token, analysis.Summary, analysis.Troubleshooting, analysis.IsApplianceImage); err != nil {
		captureError(req, err, "update token analysis")
	}
	r.eventLog.LogAsync(tok.CallID, eventlog.EventUploadAnalyzed, map[string]any{
		"is_appliance": analysis.IsApplianceImage,
	})

	if !analysis.IsApplianceImage {
		r.renderPage(w, http.StatusOK, notAppliancePageTmpl, map[string]any{
			"Appliance": applianceOr(tok.Appliance, "appliance"),
			"Summary":   analysis.Summary,
		})
		return
	}

	r.renderPage(w, http.StatusOK, successPageTmpl, map[string]any{
		"Appliance":       tok.Appliance,
		"Summary":         analysis.Summary,
		"Troubleshooting": splitTipLines(analysis.Troubleshooting),
	})
}

func applianceOr(appliance, fallback string) string {
	if appliance == "" {
		return fallback
	}
	return appliance
}

// splitTipLines breaks a newline-separated tip block into list items.
func splitTipLines(tips string) []string {
	var out []string
	for _, line := range strings.Split(tips, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (r *Router) renderPage(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		r.logger.Printf("upload: template render failed: %v", err)
	}
}

func (r *Router) renderErrorPage(w http.ResponseWriter, status int, title, message string) {
	r.renderPage(w, status, errorPageTmpl, map[string]any{"Title": title, "Message": message})
}

const pageStyle = `
    body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #f4f5f7; margin: 0; padding: 24px; color: #1c1e21; }
    .card { max-width: 480px; margin: 40px auto; background: #fff; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.08); }
    h1 { font-size: 22px; margin-top: 0; }
    h1 span { color: #0b6ef4; }
    p { line-height: 1.5; }
    .button { display: inline-block; background: #0b6ef4; color: #fff; border: none; border-radius: 8px; padding: 12px 24px; font-size: 16px; cursor: pointer; }
    ul { padding-left: 20px; }
    li { margin-bottom: 8px; }
`

var uploadFormTmpl = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Upload Photo - Fixline Home Services</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="card">
    <h1><span>Fixline</span> Home Services</h1>
    <p>Take a clear photo of your {{if .Appliance}}{{.Appliance}}{{else}}appliance{{end}}, including any error code shown on its display, and upload it here. Our AI will analyze it while you stay on the call.</p>
    <form method="post" action="/upload/{{.Token}}" enctype="multipart/form-data">
      <p><input type="file" name="image" accept="image/jpeg,image/png,image/webp" capture="environment" required></p>
      <button class="button" type="submit">Upload Photo</button>
    </form>
  </div>
</body>
</html>`))

var errorPageTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} - Fixline Home Services</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="card">
    <h1>{{.Title}}</h1>
    <p>{{.Message}}</p>
  </div>
</body>
</html>`))

var notAppliancePageTmpl = template.Must(template.New("notappliance").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Please Upload Appliance Photo - Fixline Home Services</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="card">
    <h1>Please Upload a Photo of Your {{.Appliance}}</h1>
    {{if .Summary}}<p>{{.Summary}}</p>{{end}}
    <p>The photo we received doesn't appear to show an appliance. Please use the link from your email again and upload a photo where the {{.Appliance}} or its error display is clearly visible.</p>
  </div>
</body>
</html>`))

var successPageTmpl = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Analysis Complete - Fixline Home Services</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="card">
    <h1>Analysis Complete{{if .Appliance}} - {{.Appliance}}{{end}}</h1>
    <p>{{.Summary}}</p>
    {{if .Troubleshooting}}
    <h2>What you can try</h2>
    <ul>{{range .Troubleshooting}}<li>{{.}}</li>{{end}}</ul>
    {{else}}
    <p>No specific steps identified. A technician visit may be needed.</p>
    {{end}}
    <p>You can return to your call now. We'll go over these findings together.</p>
  </div>
</body>
</html>`))
