package api

import (
	"fmt"
	"html/template"
)

func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"round1": func(v float64) string {
			return fmt.Sprintf("%.1f", round1(v))
		},
		"yesno": func(b bool) string {
			if b {
				return "Yes"
			}
			return "No"
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
