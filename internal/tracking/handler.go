package tracking

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the open-tracking pixel. The pixel is always returned;
// only verified requests are recorded.
type Handler struct {
	signer   *Signer
	recorder Recorder
	now      func() time.Time
}

func NewHandler(signer *Signer, recorder Recorder) *Handler {
	return &Handler{signer: signer, recorder: recorder, now: time.Now}
}

// Mount registers the tracking routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/track/open/{data}/{sig}", h.HandleOpen)
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	id, kind, err := h.signer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
	if err != nil {
		h.servePixel(w)
		return
	}

	evt := OpenEvent{
		ApplicationID: id,
		Kind:          kind,
		IPAddress:     realIP(r),
		UserAgent:     r.UserAgent(),
		Timestamp:     h.now().UTC(),
	}
	if err := h.recorder.RecordOpen(r.Context(), evt); err != nil {
		log.Printf("OPEN application=%s kind=%s not recorded: %v", id, kind, err)
	}
	h.servePixel(w)
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
