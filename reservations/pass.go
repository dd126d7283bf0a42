package reservations

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"reservio/models"
)

func passSecret() []byte {
	if s := os.Getenv("PASS_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("dev-pass-secret")
}

// SignPassPayload returns "reservationID|roomID|timestamp|signature". The
// door scanner verifies the signature before driving a check-in.
func SignPassPayload(reservationID, roomID string, issuedAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%d", reservationID, roomID, issuedAt.Unix())
	h := hmac.New(sha256.New, passSecret())
	h.Write([]byte(data))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("%s|%s", data, sig)
}

// VerifyPassPayload checks the signature on a scanned pass and returns the
// reservation id it was issued for.
func VerifyPassPayload(payload string) (string, bool) {
	parts := strings.SplitN(payload, "|", 4)
	if len(parts) != 4 {
		return "", false
	}
	reservationID, roomID, ts, sig := parts[0], parts[1], parts[2], parts[3]

	data := fmt.Sprintf("%s|%s|%s", reservationID, roomID, ts)
	h := hmac.New(sha256.New, passSecret())
	h.Write([]byte(data))
	want := base64.StdEncoding.EncodeToString(h.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return "", false
	}
	return reservationID, true
}

// PrintPass renders a printable PDF pass with a signed QR code for the
// reservation. Cancelled reservations have no pass.
func (a *API) PrintPass(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := a.engine.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if res.Status == models.StatusCancelled {
		http.Error(w, "Reservation is cancelled", http.StatusUnprocessableEntity)
		return
	}

	payload := SignPassPayload(res.ID, res.RoomID, a.engine.Now())
	qrPNG, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Room Reservation Pass")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Title: %s", res.Title))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Room: %s", res.RoomID))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("From: %s", res.StartsAt.UTC().Format(time.RFC1123)))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("To:   %s", res.EndsAt.UTC().Format(time.RFC1123)))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Booked by: %s", res.RequesterEmail))
	pdf.Ln(12)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 75, pdf.GetY(), 60, 60, false, opts, 0, "")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=pass-%s.pdf", res.ID))
	if err := pdf.Output(w); err != nil {
		http.Error(w, "Failed to render pass", http.StatusInternalServerError)
	}
}
