package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"charstudio/internal/animation"
	"charstudio/internal/attachment"
	"charstudio/internal/exchange"
	"charstudio/internal/lexicon"
	"charstudio/internal/payload"
	"charstudio/internal/prompt"
	"charstudio/internal/sdapi"
	"charstudio/internal/studio"
	"charstudio/internal/tts"
)

// studioRequest is a selection plus optional images given as data URLs.
// Fields missing from the body keep their default values.
type studioRequest struct {
	studio.State
	Images images `json:"images"`
}

type images struct {
	Reference string `json:"reference,omitempty"`
	Pose      string `json:"pose,omitempty"`
	Mask      string `json:"mask,omitempty"`
}

func (i images) get(slot studio.Slot) string {
	switch slot {
	case studio.SlotReference:
		return i.Reference
	case studio.SlotPose:
		return i.Pose
	case studio.SlotMask:
		return i.Mask
	}
	return ""
}

type categoryOptions struct {
	ID      lexicon.Category `json:"id"`
	Title   string           `json:"title"`
	Options []lexicon.Option `json:"options"`
}

type optionsResponse struct {
	Categories []categoryOptions `json:"categories"`
	Defaults   studio.State      `json:"defaults"`
	Voices     []string          `json:"voices"`
}

type payloadResponse struct {
	Mode    payload.Mode    `json:"mode"`
	Request payload.Request `json:"payload"`
}

type generateResponse struct {
	Mode   payload.Mode `json:"mode"`
	Seed   int64        `json:"seed"`
	Images []string     `json:"images"`
}

type pingResponse struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

type speechResponse struct {
	FileBase64 string `json:"file_base64"`
	AudioText  string `json:"audio_text"`
	FileName   string `json:"file_name"`
}

func (s *Server) handleGetOptions(c echo.Context) error {
	cats := lexicon.Categories()
	out := optionsResponse{
		Categories: make([]categoryOptions, 0, len(cats)),
		Defaults:   studio.Default(),
		Voices:     tts.Presets(),
	}
	for _, cat := range cats {
		out.Categories = append(out.Categories, categoryOptions{
			ID:      cat,
			Title:   cat.Title(),
			Options: lexicon.ListOptions(cat),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handlePostPrompt(c echo.Context) error {
	st, err := s.bindStudio(c)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, prompt.Compile(st))
}

func (s *Server) handlePostPayload(c echo.Context) error {
	mode, err := payload.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	st, err := s.bindStudio(c)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	req, err := payload.Assemble(prompt.Compile(st), st, mode)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, payloadResponse{Mode: mode, Request: req})
}

func (s *Server) handlePostGenerate(c echo.Context) error {
	if s.gen == nil {
		return errJSON(c, http.StatusServiceUnavailable, "generation backend is not configured")
	}
	mode, err := payload.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	st, err := s.bindStudio(c)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
	defer cancel()

	req, err := payload.AssembleAsync(ctx, prompt.Compile(st), st, mode, nil)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	res, err := s.gen.Generate(ctx, st.Backend.URL, mode, req)
	switch {
	case errors.Is(err, sdapi.ErrNoBackendURL):
		return errJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, sdapi.ErrBackendUnreachable):
		s.logger.Warn("generation backend unreachable", "err", err)
		return errJSON(c, http.StatusBadGateway, err.Error())
	case err != nil:
		s.logger.Error("generation failed", "err", err)
		return errJSON(c, http.StatusInternalServerError, err.Error())
	}

	images := res.Images
	if images == nil {
		images = []string{}
	}
	return c.JSON(http.StatusOK, generateResponse{Mode: mode, Seed: st.Seed, Images: images})
}

func (s *Server) handlePostExport(c echo.Context) error {
	st, err := s.bindStudio(c)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	raw, err := animation.Marshal(animation.Compile(prompt.Compile(st), st))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", animation.FileName))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, raw)
}

func (s *Server) handleGetAnimationSchema(c echo.Context) error {
	return c.JSON(http.StatusOK, animation.Schema())
}

func (s *Server) handleGetPing(c echo.Context) error {
	if s.gen == nil {
		return errJSON(c, http.StatusServiceUnavailable, "generation backend is not configured")
	}
	if err := s.gen.Ping(c.Request().Context(), c.QueryParam("url")); err != nil {
		return c.JSON(http.StatusOK, pingResponse{Reachable: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, pingResponse{Reachable: true})
}

func (s *Server) handlePostTTS(c echo.Context) error {
	if s.speech == nil {
		return errJSON(c, http.StatusServiceUnavailable, "speech backend is not configured")
	}

	var m exchange.Message
	if err := json.NewDecoder(c.Request().Body).Decode(&m); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json body")
	}
	if err := m.Validate(); err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	req, ok := m.SpeechRequest()
	if !ok {
		return errJSON(c, http.StatusBadRequest, "message does not request a voice reply")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
	defer cancel()

	audio, err := s.speech.Synthesize(ctx, req)
	switch {
	case errors.Is(err, tts.ErrNoAudioData):
		return errJSON(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, tts.ErrBackendUnreachable):
		return errJSON(c, http.StatusBadGateway, err.Error())
	case err != nil:
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, speechResponse{
		FileBase64: base64.StdEncoding.EncodeToString(audio.Data),
		AudioText:  audio.Text,
		FileName:   audio.FileName,
	})
}

// bindStudio reads a selection from a JSON body, or from a multipart form
// with the selection in the "state" field and image files named after their
// slots.
func (s *Server) bindStudio(c echo.Context) (studio.State, error) {
	body := studioRequest{State: studio.Default()}
	r := c.Request()

	if strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return studio.State{}, errors.New("invalid multipart form")
		}
		if raw := strings.TrimSpace(r.FormValue("state")); raw != "" {
			if err := json.Unmarshal([]byte(raw), &body); err != nil {
				return studio.State{}, errors.New("invalid state json")
			}
		}
		for _, slot := range studio.Slots() {
			a, err := formAttachment(c, string(slot))
			if err != nil {
				return studio.State{}, err
			}
			if a != nil {
				body.Files.Set(slot, a)
			}
		}
	} else if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return studio.State{}, errors.New("invalid json body")
		}
	}

	for _, slot := range studio.Slots() {
		if body.Files.Get(slot) != nil {
			continue
		}
		value := body.Images.get(slot)
		if value == "" {
			continue
		}
		a, err := decodeImage(value)
		if err != nil {
			return studio.State{}, fmt.Errorf("%s image: %w", slot, err)
		}
		body.Files.Set(slot, a)
	}

	st := body.State
	st.SetReferenceStrength(st.ReferenceStrength)
	st.SetSeed(st.Seed)
	if st.Backend.Model == "" {
		st.Backend.Model = s.defaultModel
	}
	return st, nil
}

func formAttachment(c echo.Context, field string) (*studio.Attachment, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	data, err := readFormFile(fh)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return &studio.Attachment{
		Name:     fh.Filename,
		MimeType: attachment.DetectMime(fh.Header.Get(echo.HeaderContentType), data),
		Data:     data,
	}, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func decodeImage(value string) (*studio.Attachment, error) {
	mimeType, b64, err := attachment.ParseDataURL(value)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return &studio.Attachment{MimeType: attachment.DetectMime(mimeType, data), Data: data}, nil
}
