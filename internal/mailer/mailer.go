// Package mailer delivers issued license files to customers by email
// through the Resend REST API. The license artifact travels as a base64
// attachment named license.undergrowth.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/MyysticOwl/undergrowth-website/internal/errors"
	"github.com/MyysticOwl/undergrowth-website/internal/infrastructure"
)

// AttachmentFilename is the name customers see on the emailed license.
const AttachmentFilename = "license.undergrowth"

// Client sends transactional mail through Resend.
type Client struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewClient builds a mail client. from is the RFC 5322 sender, e.g.
// "Undergrowth <noreply@undergrowth.io>".
func NewClient(baseURL, apiKey, from string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type sendRequest struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []attachment `json:"attachments,omitempty"`
}

// SendLicense emails the license artifact to the customer. edition and
// variantName only affect the subject and body copy; the artifact bytes
// are attached verbatim.
func (c *Client) SendLicense(ctx context.Context, toEmail, edition, variantName string, licenseFile []byte) error {
	log := infrastructure.WithComponent(infrastructure.LoggerWithContext(ctx), "mailer")

	if c.apiKey == "" {
		log.Error("mail send attempted without provider API key")
		return fmt.Errorf("%w: mail provider API key not configured", apperrors.ErrServerConfiguration)
	}

	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Your Undergrowth %s License", titleCase(edition)),
		HTML:    licenseEmailHTML(variantName),
		Attachments: []attachment{
			{
				Filename: AttachmentFilename,
				Content:  base64.StdEncoding.EncodeToString(licenseFile),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("encoding mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending license email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error("mail provider rejected send",
			"status", resp.StatusCode,
			"detail", string(detail))
		return fmt.Errorf("mail provider returned %d", resp.StatusCode)
	}

	log.Info("license email sent", "edition", edition)
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func licenseEmailHTML(variantName string) string {
	return `
<h2>Thank you for purchasing Undergrowth!</h2>
<p>Your <strong>` + variantName + `</strong> license is attached to this email.</p>
<h3>Installation Instructions</h3>
<ol>
    <li>Download the attached <code>license.undergrowth</code> file</li>
    <li>Place it in one of these locations:
        <ul>
            <li><code>./license.undergrowth</code> (same directory as the binary)</li>
            <li><code>./data/license.undergrowth</code></li>
            <li>Linux: <code>~/.config/undergrowth/license.undergrowth</code></li>
            <li>Windows: <code>%APPDATA%\undergrowth\license.undergrowth</code></li>
        </ul>
    </li>
    <li>Restart Undergrowth</li>
    <li>Verify with <code>undergrowth --license-info</code></li>
</ol>
<p>If you have any questions, reply to this email or visit <a href="https://undergrowth.io/docs">our documentation</a>.</p>
<p>Happy automating!</p>
<p>&mdash; The Undergrowth Team</p>
`
}
