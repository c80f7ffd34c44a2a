package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ambunow/ambugo-app/internal/broker/messages"
	"github.com/ambunow/ambugo-app/internal/integrations/mailer"
	"github.com/ambunow/ambugo-app/internal/models"
)

type Config struct {
	FromEmail     string
	Recipients    []string
	PublicBaseURL string
	CreatedTopic  string
}

// Service превращает события request.created в письма: одно операторам
// и одно подтверждение клиенту. Сбой отправки логируется и не
// возвращается наверх, чтобы консьюмер закоммитил оффсет и не
// зациклился на одном сообщении.
type Service struct {
	mail   mailer.Client
	cfg    Config
	logger *slog.Logger

	operatorSent atomic.Uint64
	customerSent atomic.Uint64
	failed       atomic.Uint64
}

func New(mail mailer.Client, cfg Config, logger *slog.Logger) *Service {
	return &Service{mail: mail, cfg: cfg, logger: logger}
}

type Stats struct {
	OperatorSent uint64 `json:"operator_sent"`
	CustomerSent uint64 `json:"customer_sent"`
	Failed       uint64 `json:"failed"`
}

func (s *Service) Stats() Stats {
	return Stats{
		OperatorSent: s.operatorSent.Load(),
		CustomerSent: s.customerSent.Load(),
		Failed:       s.failed.Load(),
	}
}

// HandleMessage разбирает событие брокера. Сигнатура совпадает с
// хендлером консьюмера.
func (s *Service) HandleMessage(topic string, _, value []byte) error {
	if topic != s.cfg.CreatedTopic {
		s.logger.Warn("notify: unknown topic", "topic", topic)
		return nil
	}

	var msg messages.RequestCreated
	if err := json.Unmarshal(value, &msg); err != nil {
		return errors.Wrap(err, "unmarshal request created")
	}

	s.Notify(context.Background(), msg)
	return nil
}

// Notify отправляет оба письма по одной заявке.
func (s *Service) Notify(ctx context.Context, msg messages.RequestCreated) {
	if err := s.sendOperator(ctx, msg); err != nil {
		s.failed.Add(1)
		s.logger.Error("operator email failed", "request_id", msg.RequestID, "error", err.Error())
	} else {
		s.operatorSent.Add(1)
	}

	if msg.Email == nil || *msg.Email == "" {
		return
	}
	if err := s.sendCustomer(ctx, msg); err != nil {
		s.failed.Add(1)
		s.logger.Error("customer email failed", "request_id", msg.RequestID, "error", err.Error())
	} else {
		s.customerSent.Add(1)
	}
}

type emailData struct {
	RequestID     uint64
	Date          string
	TimeRange     string
	TypeLabel     string
	IsEmergency   bool
	PickupText    string
	DestText      string
	FullName      string
	Email         string
	Phone         string
	CommentsLines []string
	StatusURL     string
}

var operatorTmpl = template.Must(template.New("operator").Parse(`
<div style="font-family: system-ui, sans-serif; font-size:14px; color:#111">
  <h2>Νέο αίτημα ασθενοφόρου{{if .IsEmergency}} (ΕΠΕΙΓΟΝ){{end}}</h2>
  <p><strong>ID αιτήματος:</strong> {{.RequestID}}</p>
  <p><strong>Ημερομηνία μεταφοράς:</strong> {{.Date}}</p>
  <p><strong>Ώρα παραλαβής:</strong> {{.TimeRange}}</p>
  <p><strong>Είδος ασθενοφόρου:</strong> {{.TypeLabel}}</p>
  <p><strong>Επείγον:</strong> {{if .IsEmergency}}Ναι{{else}}Όχι{{end}}</p>
  <p><strong>Από:</strong><br/>{{.PickupText}}</p>
  <p><strong>Προς:</strong><br/>{{.DestText}}</p>
  <hr style="margin:16px 0; border:none; border-top:1px solid #eee;" />
  <p><strong>Στοιχεία πελάτη</strong></p>
  <p><strong>Ονοματεπώνυμο:</strong> {{.FullName}}</p>
  <p><strong>Email:</strong> {{.Email}}</p>
  <p><strong>Κινητό:</strong> {{.Phone}}</p>
  <p><strong>Σχόλια πελάτη:</strong><br/>{{range .CommentsLines}}{{.}}<br/>{{end}}</p>
  <hr style="margin:16px 0; border:none; border-top:1px solid #eee;" />
  <p style="font-size:12px; color:#666">Το μήνυμα δημιουργήθηκε αυτόματα από την πλατφόρμα Ambugo.</p>
</div>
`))

var customerTmpl = template.Must(template.New("customer").Parse(`
<div style="font-family: system-ui, sans-serif; font-size:14px; color:#111">
  <h2>Επιβεβαίωση αίτησης ασθενοφόρου</h2>
  <p>Αγαπητέ/ή {{.FullName}},</p>
  <p>Λάβαμε την αίτησή σας για ασθενοφόρο. Σύντομα θα λάβετε προσφορές από συνεργαζόμενες εταιρείες.</p>
  <p><strong>Ημερομηνία μεταφοράς:</strong> {{.Date}}</p>
  <p><strong>Ώρα παραλαβής:</strong> {{.TimeRange}}</p>
  <p><strong>Είδος ασθενοφόρου:</strong> {{.TypeLabel}}</p>
  <p><strong>Επείγον:</strong> {{if .IsEmergency}}Ναι{{else}}Όχι{{end}}</p>
  <p><strong>Από:</strong><br/>{{.PickupText}}</p>
  <p><strong>Προς:</strong><br/>{{.DestText}}</p>
  {{if .StatusURL}}<p>Μπορείτε να παρακολουθείτε την πορεία του αιτήματός σας εδώ:<br/><a href="{{.StatusURL}}">{{.StatusURL}}</a></p>{{end}}
  <p style="margin-top:16px; font-size:12px; color:#666">Το email είναι ενημερωτικό, μην το απαντήσετε. Αν υπάρχει κάτι επείγον, επικοινωνήστε απευθείας με το 166/112.</p>
</div>
`))

func (s *Service) sendOperator(ctx context.Context, msg messages.RequestCreated) error {
	data := buildData(msg, s.cfg.PublicBaseURL)

	var body bytes.Buffer
	if err := operatorTmpl.Execute(&body, data); err != nil {
		return errors.Wrap(err, "render operator email")
	}

	subject := fmt.Sprintf("Νέο αίτημα ασθενοφόρου – %s", msg.Date)
	if msg.IsEmergency {
		subject = fmt.Sprintf("Νέο αίτημα ασθενοφόρου (ΕΠΕΙΓΟΝ) – %s", msg.Date)
	}

	m := mailer.Message{
		From:    s.cfg.FromEmail,
		To:      s.cfg.Recipients,
		Subject: subject,
		HTML:    body.String(),
	}
	if msg.Email != nil {
		m.ReplyTo = *msg.Email
	}
	return s.mail.Send(ctx, m)
}

func (s *Service) sendCustomer(ctx context.Context, msg messages.RequestCreated) error {
	data := buildData(msg, s.cfg.PublicBaseURL)
	if data.FullName == "-" {
		data.FullName = "πελάτη"
	}

	var body bytes.Buffer
	if err := customerTmpl.Execute(&body, data); err != nil {
		return errors.Wrap(err, "render customer email")
	}

	return s.mail.Send(ctx, mailer.Message{
		From:    s.cfg.FromEmail,
		To:      []string{*msg.Email},
		Subject: "Λάβαμε την αίτησή σας για ασθενοφόρο",
		HTML:    body.String(),
	})
}

func buildData(msg messages.RequestCreated, baseURL string) emailData {
	typeLabel := models.AmbulanceTypeLabel[msg.AmbulanceType]
	if typeLabel == "" {
		typeLabel = orDash(msg.AmbulanceType)
	}

	var statusURL string
	if baseURL != "" && msg.PublicToken != "" {
		statusURL = strings.TrimRight(baseURL, "/") + "/r/" + msg.PublicToken
	}

	return emailData{
		RequestID:     msg.RequestID,
		Date:          orDash(msg.Date),
		TimeRange:     timeRange(msg.TimeFrom, msg.TimeTo),
		TypeLabel:     typeLabel,
		IsEmergency:   msg.IsEmergency,
		PickupText:    msg.PickupText,
		DestText:      msg.DestText,
		FullName:      orDashPtr(msg.FullName),
		Email:         orDashPtr(msg.Email),
		Phone:         orDashPtr(msg.Phone),
		CommentsLines: commentLines(msg.Comments),
		StatusURL:     statusURL,
	}
}

func timeRange(from, to *string) string {
	if from == nil && to == nil {
		return "Όλη την ημέρα"
	}
	f, t := "--:--", "--:--"
	if from != nil {
		f = *from
	}
	if to != nil {
		t = *to
	}
	return f + " – " + t
}

func commentLines(comments *string) []string {
	if comments == nil || strings.TrimSpace(*comments) == "" {
		return []string{"-"}
	}
	return strings.Split(*comments, "\n")
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func orDashPtr(v *string) string {
	if v == nil {
		return "-"
	}
	return orDash(*v)
}
