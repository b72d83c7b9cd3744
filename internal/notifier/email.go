package notifier

import (
	"fmt"
	"strings"

	"github.com/rifadigital/raffle-gateway/internal/model"
	mail "github.com/wneessen/go-mail"
)

// Mailer sends a rendered confirmation message.
type Mailer interface {
	Send(to, subject, textBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and from address are required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPMailer{
		client: client,
		from:   cfg.From,
	}, nil
}

func (m *SMTPMailer) Send(to, subject, textBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)

	return m.client.DialAndSend(msg)
}

// BuildConfirmationEmail renders the purchase confirmation. Numbers are
// zero-padded to five digits, the width printed on the physical tickets.
func BuildConfirmationEmail(raffleName string, c model.PurchaseConfirmation) (subject, body string) {
	padded := make([]string, len(c.Numbers))
	for i, n := range c.Numbers {
		padded[i] = fmt.Sprintf("%05d", n)
	}

	subject = fmt.Sprintf("%s: compra confirmada", raffleName)

	var b strings.Builder
	name := c.Name
	if name == "" {
		name = "participante"
	}
	fmt.Fprintf(&b, "Hola %s,\n\n", name)
	fmt.Fprintf(&b, "Tu pago fue aprobado y tus números ya están asegurados.\n\n")
	fmt.Fprintf(&b, "Números: %s\n", strings.Join(padded, ", "))
	fmt.Fprintf(&b, "Total: $%.2f\n", c.Amount)
	fmt.Fprintf(&b, "Comprobante de pago: %s\n", c.PaymentID)
	fmt.Fprintf(&b, "Fecha: %s\n\n", c.PurchasedAt.Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "¡Mucha suerte en el sorteo!\n%s\n", raffleName)

	return subject, b.String()
}
