package relay

import (
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/glossa/pkg/llm"
	"github.com/papercomputeco/glossa/pkg/translator"
)

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// translateFile stores an uploaded .txt file, translates it and answers with
// the download URL of the result.
func (r *Relay) translateFile(c *fiber.Ctx, tr *translator.Translator, req translator.Request, fh *multipart.FileHeader) error {
	name := filepath.Base(fh.Filename)
	if name == "" || name == "." {
		return badRequest(c, "No file selected.")
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".txt" {
		return badRequest(c, "File type not allowed. Please upload a .txt file.")
	}

	id := uuid.NewString()
	uploadPath := filepath.Join(r.config.UploadDir, id+ext)
	if err := c.SaveFile(fh, uploadPath); err != nil {
		r.logger.Error("could not save upload", "file", name, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Failed to save uploaded file."})
	}
	defer func() {
		if err := os.Remove(uploadPath); err != nil {
			r.logger.Warn("could not remove upload", "path", uploadPath, "error", err)
		}
	}()

	f, err := os.Open(uploadPath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Failed to read uploaded file."})
	}
	defer f.Close()

	encoding := c.FormValue("encoding", translator.DefaultEncoding)
	r.logger.Info("received file translation request",
		"platform", tr.Settings().Platform,
		"file", name,
		"encoding", encoding,
		"target", req.TargetLang,
	)

	out, err := tr.TranslateTextFile(c.UserContext(), f, encoding, req)
	if err != nil {
		r.logger.Error("file translation failed", "file", name, "error", err)
		return c.Status(statusFor(err)).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	outName := fmt.Sprintf("%s_translated_%s.txt", id, safeName(req.TargetLang))
	if err := os.WriteFile(filepath.Join(r.config.OutputDir, outName), []byte(out), 0o644); err != nil {
		r.logger.Error("could not write translation", "file", outName, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Failed to store translated file."})
	}

	return c.JSON(fiber.Map{"translated_file_url": "/download/" + outName})
}

func (r *Relay) handleDownload(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("filename"))
	if err != nil || !validDownloadName(name) {
		return badRequest(c, "Invalid file name.")
	}

	path := filepath.Join(r.config.OutputDir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "File not found."})
		}
		return err
	}

	return c.Download(path, name)
}

// validDownloadName rejects anything that could leave the output directory.
func validDownloadName(name string) bool {
	switch {
	case name == "", name == ".":
		return false
	case strings.Contains(name, ".."):
		return false
	case filepath.IsAbs(name), strings.ContainsAny(name, `/\`):
		return false
	default:
		return true
	}
}

// safeName turns a language label into a file name component.
func safeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "text"
	}
	return s
}
