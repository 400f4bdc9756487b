package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/imageutil"
)

// Output formats for /api/convert.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// RawRGBAType is the content type for unencoded row-major RGBA uploads.
// Their dimensions come from the pixel_width and pixel_height query
// parameters.
const RawRGBAType = "application/x-rgba"

type convertersResponse struct {
	Active     string                    `json:"active"`
	Converters []img2ascii.ConverterInfo `json:"converters"`
}

// GridResponse is the JSON form of a CharacterGrid. Colors are "#rrggbb"
// strings and are omitted in monochrome mode.
type GridResponse struct {
	Converter string     `json:"converter"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Mode      string     `json:"mode"`
	Rows      []string   `json:"rows"`
	Colors    [][]string `json:"colors,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listConverters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, convertersResponse{
		Active:     s.engine.Active(),
		Converters: s.engine.Converters(),
	})
}

// convert accepts an image as the raw body or as the "image" field of a
// multipart form.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	q := r.URL.Query()
	opts, err := parseOptions(q, s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	format := q.Get("format")
	if format == "" {
		format = FormatText
	}
	switch format {
	case FormatText, FormatJSON, FormatPNG, FormatWebP:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown format %q", format))
		return
	}

	img, err := readImage(r, s.maxUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	name := q.Get("converter")
	if name == "" {
		name = s.engine.Active()
	}
	if name == "" {
		writeError(w, statusFor(img2ascii.ErrNoActiveConverter), img2ascii.ErrNoActiveConverter)
		return
	}
	grid, err := s.engine.ConvertWith(name, img, opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	switch format {
	case FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, grid.Text())
	case FormatJSON:
		writeJSON(w, http.StatusOK, gridResponse(name, grid))
	default:
		s.writeRendered(w, grid, format)
	}
}

func (s *Server) writeRendered(w http.ResponseWriter, grid *img2ascii.CharacterGrid, format string) {
	// Rasterizers hold a mutable surface, so each request gets its own.
	raster, err := img2ascii.NewRasterizer(s.rasterOpts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer raster.Close()

	if _, err := raster.Render(grid); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var data []byte
	contentType := "image/png"
	if format == FormatWebP {
		data, err = raster.EncodeWebP()
		contentType = "image/webp"
	} else {
		data, err = raster.EncodePNG()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func readImage(r *http.Request, limit int64) (*imageutil.RGBAImage, error) {
	if r.Header.Get("Content-Type") == RawRGBAType {
		return readRawPixels(r, limit)
	}
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("reading form: %w", err)
		}
		defer file.Close()
		body = file
	}
	img, err := imageutil.DecodeImage(body)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// readRawPixels reads an RGBA body whose declared size must fit within
// limit bytes.
func readRawPixels(r *http.Request, limit int64) (*imageutil.RGBAImage, error) {
	q := r.URL.Query()
	w, errW := strconv.Atoi(q.Get("pixel_width"))
	h, errH := strconv.Atoi(q.Get("pixel_height"))
	if errW != nil || errH != nil {
		return nil, &img2ascii.InputError{Field: "pixel_width", Reason: "pixel_width and pixel_height are required for raw uploads"}
	}
	if w > 0 && h > 0 && int64(h) > limit/4/int64(w) {
		return nil, &img2ascii.InputError{Field: "image", Reason: fmt.Sprintf("%dx%d pixels exceed the %d byte upload limit", w, h, limit)}
	}
	pix, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	img, err := imageutil.RGBAImageFromPixels(w, h, pix)
	if err != nil {
		return nil, &img2ascii.InputError{Field: "image", Reason: err.Error()}
	}
	return img, nil
}

// parseOptions applies query parameters over defaults.
func parseOptions(q url.Values, defaults img2ascii.Options) (img2ascii.Options, error) {
	opts := defaults

	if v := q.Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &img2ascii.InputError{Field: "width", Reason: "not an integer"}
		}
		opts.Width = n
	}
	if v := q.Get("color"); v != "" {
		mode, err := img2ascii.ParseColorMode(v)
		if err != nil {
			return opts, err
		}
		opts.ColorMode = mode
	}
	if v := q.Get("charset"); v != "" {
		opts.Charset = v
	}
	if v := q.Get("edge_charset"); v != "" {
		opts.EdgeCharset = v
	}
	if v := q.Get("fill_charset"); v != "" {
		opts.FillCharset = v
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"saturation", &opts.Saturation},
		{"low", &opts.LowThreshold},
		{"high", &opts.HighThreshold},
		{"boost", &opts.LuminanceBoost},
	}
	for _, f := range floats {
		v := q.Get(f.key)
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, &img2ascii.InputError{Field: f.key, Reason: "not a number"}
		}
		*f.dst = x
	}
	return opts, opts.Validate()
}

func gridResponse(name string, grid *img2ascii.CharacterGrid) GridResponse {
	resp := GridResponse{
		Converter: name,
		Width:     grid.Width,
		Height:    grid.Height,
		Mode:      grid.Mode.String(),
		Rows:      grid.Rows(),
	}
	if grid.Mode == img2ascii.Color {
		resp.Colors = make([][]string, grid.Height)
		for y, row := range grid.Colors {
			resp.Colors[y] = make([]string, len(row))
			for x, c := range row {
				resp.Colors[y][x] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
			}
		}
	}
	return resp
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, img2ascii.ErrInvalidInput), errors.Is(err, img2ascii.ErrUnknownConverter):
		return http.StatusBadRequest
	case errors.Is(err, img2ascii.ErrNoActiveConverter):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
