package handler

import (
	"html/template"
	"log/slog"
	"net/http"
)

func render(w http.ResponseWriter, t *template.Template, logger *slog.Logger, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("template render", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
