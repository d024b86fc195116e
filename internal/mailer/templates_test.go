package mailer

import (
	"bytes"
	"strings"
	"testing"
	"text/template"
)

type outcomeData struct {
	Username string
	ReviewID string
	Reasons  []string
	Warnings []string
}

func renderTemplate(t *testing.T, templateFile string, data outcomeData) (subject, body string) {
	t.Helper()

	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		t.Fatalf("parse %s: %v", templateFile, err)
	}

	var subjectBuf, bodyBuf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subjectBuf, "subject", data); err != nil {
		t.Fatalf("execute subject of %s: %v", templateFile, err)
	}
	if err := tmpl.ExecuteTemplate(&bodyBuf, "body", data); err != nil {
		t.Fatalf("execute body of %s: %v", templateFile, err)
	}
	return subjectBuf.String(), bodyBuf.String()
}

func TestOutcomeTemplatesRender(t *testing.T) {
	data := outcomeData{
		ReviewID: "rev-1",
		Reasons:  []string{"contains a banned phrase"},
		Warnings: []string{"near-duplicate of a recent review"},
	}

	for _, templateFile := range []string{
		ReviewApprovedTemplate,
		ReviewRejectedTemplate,
		ReviewFlaggedTemplate,
	} {
		subject, body := renderTemplate(t, templateFile, data)
		if strings.TrimSpace(subject) == "" {
			t.Fatalf("%s produced an empty subject", templateFile)
		}
		if !strings.Contains(body, "rev-1") {
			t.Fatalf("%s body does not mention the review id:\n%s", templateFile, body)
		}
	}
}

func TestRejectedTemplateListsReasons(t *testing.T) {
	data := outcomeData{
		ReviewID: "rev-1",
		Reasons:  []string{"contains a banned phrase", "rating text mismatch"},
	}

	_, body := renderTemplate(t, ReviewRejectedTemplate, data)
	for _, reason := range data.Reasons {
		if !strings.Contains(body, reason) {
			t.Fatalf("rejection body missing reason %q:\n%s", reason, body)
		}
	}
}

func TestFlaggedTemplateListsWarnings(t *testing.T) {
	data := outcomeData{
		ReviewID: "rev-1",
		Warnings: []string{"rapid submissions from the same address"},
	}

	_, body := renderTemplate(t, ReviewFlaggedTemplate, data)
	if !strings.Contains(body, data.Warnings[0]) {
		t.Fatalf("flagged body missing warning:\n%s", body)
	}
}
