package storage

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

// certificateTemplate is deliberately plain: the public URL is the product,
// downstream branding happens elsewhere.
var certificateTemplate = template.Must(template.New("certificate").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Placement Certificate</title></head>
<body>
  <h1>Certificate of Placement</h1>
  <p>Participant #{{.ParticipantID}} finished in place {{.Placement}}
     of tournament #{{.TournamentID}}.</p>
  <p>Issued {{.IssuedAt}}.</p>
</body>
</html>
`))

// CertificateStore renders placement documents into an object store and
// hands back their public URLs. Issuing the same placement twice overwrites
// the same key, so redelivery after a crash is harmless.
type CertificateStore struct {
	uploader FileUploader
}

func NewCertificateStore(uploader FileUploader) *CertificateStore {
	return &CertificateStore{uploader: uploader}
}

func (s *CertificateStore) Issue(ctx context.Context, tournamentID, participantID, placement int) (string, error) {
	var buf bytes.Buffer
	err := certificateTemplate.Execute(&buf, map[string]interface{}{
		"TournamentID":  tournamentID,
		"ParticipantID": participantID,
		"Placement":     placement,
		"IssuedAt":      time.Now().Format("2006-01-02"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render certificate: %w", err)
	}

	key := fmt.Sprintf("certificates/t%d/p%d-place%d.html", tournamentID, participantID, placement)
	result, err := s.uploader.Upload(ctx, key, "text/html; charset=utf-8", &buf)
	if err != nil {
		return "", err
	}
	return result.Location, nil
}
