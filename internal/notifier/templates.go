package notifier

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/stemsi/exstem-assess/internal/model"
)

// ResultData fills the result-declared templates.
type ResultData struct {
	CandidateName string
	TestName      string
	Score         int
	PassingScore  int
	Status        model.ResultStatus
}

// Passed is used by the templates.
func (d ResultData) Passed() bool {
	return d.Status == model.ResultStatusPassed
}

const resultText = `Hi {{.CandidateName}},

Your results for "{{.TestName}}" are now available.

Score: {{.Score}}%
Passing score: {{.PassingScore}}%
Status: {{.Status}}
{{if .Passed}}
Congratulations! The hiring team will contact you about next steps.
{{else}}
Thank you for taking the time to complete the assessment.
{{end}}
`

const resultHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
<p>Hi {{.CandidateName}},</p>
<p>Your results for <strong>{{.TestName}}</strong> are now available.</p>
<table cellpadding="4">
<tr><td>Score</td><td><strong>{{.Score}}%</strong></td></tr>
<tr><td>Passing score</td><td>{{.PassingScore}}%</td></tr>
<tr><td>Status</td><td style="color: {{if .Passed}}#1a7f37{{else}}#cf222e{{end}};">{{.Status}}</td></tr>
</table>
{{if .Passed}}<p>Congratulations! The hiring team will contact you about next steps.</p>
{{else}}<p>Thank you for taking the time to complete the assessment.</p>
{{end}}</body>
</html>
`

var (
	resultTextTmpl = template.Must(template.New("result.txt").Parse(resultText))
	resultHTMLTmpl = htmltemplate.Must(htmltemplate.New("result.html").Parse(resultHTML))
)

// ResultMessage renders the result-declared email for to.
func ResultMessage(to string, data ResultData) (Message, error) {
	var text, html bytes.Buffer
	if err := resultTextTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	if err := resultHTMLTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}

	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your results for %s", data.TestName),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
