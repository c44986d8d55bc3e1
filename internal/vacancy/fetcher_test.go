package vacancy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aiinterviewer/internal/models"
)

func newTestFetcher(apiBase string) *Fetcher {
	f := NewFetcher(nil, nil)
	if apiBase != "" {
		f.apiBase = apiBase
	}
	return f
}

func TestResolveVacancyTextInlineWins(t *testing.T) {
	f := newTestFetcher("")
	text, err := f.ResolveVacancyText(context.Background(), "https://hh.ru/vacancy/1", "  готовый текст вакансии  ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if text != "готовый текст вакансии" {
		t.Fatalf("text = %q", text)
	}
}

func TestResolveVacancyTextFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vacancies/123" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "Go-разработчик",
			"description": "<p>Пишем <b>сервисы</b> на Go</p>",
			"experience": {"name": "3-6 лет"},
			"employment": {"name": "Полная занятость"},
			"key_skills": [{"name": "Go"}, {"name": "PostgreSQL"}],
			"employer": {"name": "Рога и Копыта"}
		}`))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	text, err := f.ResolveVacancyText(context.Background(), "https://hh.ru/vacancy/123?from=search", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	for _, want := range []string{"Go-разработчик", "Рога и Копыта", "3-6 лет", "Go, PostgreSQL", "Пишем сервисы на Go"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "<p>") {
		t.Fatal("markup must be stripped from the description")
	}
}

func TestResolveVacancyTextAPINotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	_, err := f.ResolveVacancyText(context.Background(), "https://hh.ru/vacancy/999", "")
	if !errors.Is(err, models.ErrVacancyNotParsable) {
		t.Fatalf("error = %v, want ErrVacancyNotParsable", err)
	}
}

func TestResolveVacancyTextGenericPageMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head>
			<meta name="description" content="Ищем инженера поддержки со знанием Linux">
		</head><body><p>прочее</p></body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher("")
	text, err := f.ResolveVacancyText(context.Background(), srv.URL+"/jobs/42", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if text != "Ищем инженера поддержки со знанием Linux" {
		t.Fatalf("text = %q", text)
	}
}

func TestResolveVacancyTextGenericPageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><script>var x = 1;</script><style>p{}</style></head>
			<body><h1>Вакансия</h1><p>Нужен тестировщик мобильных приложений</p></body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher("")
	text, err := f.ResolveVacancyText(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(text, "Нужен тестировщик мобильных приложений") {
		t.Fatalf("text = %q", text)
	}
	if strings.Contains(text, "var x") {
		t.Fatal("script content must be stripped")
	}
}

func TestResolveVacancyTextRejectsBadScheme(t *testing.T) {
	f := newTestFetcher("")
	_, err := f.ResolveVacancyText(context.Background(), "ftp://example.com/vacancy.txt", "")
	if !errors.Is(err, models.ErrVacancyNotParsable) {
		t.Fatalf("error = %v, want ErrVacancyNotParsable", err)
	}
}

func TestResolveVacancyTextEmptySources(t *testing.T) {
	f := newTestFetcher("")
	_, err := f.ResolveVacancyText(context.Background(), "", "")
	if !errors.Is(err, models.ErrVacancyNotParsable) {
		t.Fatalf("error = %v, want ErrVacancyNotParsable", err)
	}
}

func TestExtractVacancyID(t *testing.T) {
	cases := map[string]string{
		"https://hh.ru/vacancy/123":             "123",
		"https://hh.ru/vacancy/123?from=search": "123",
		"https://spb.hh.ru/vacancy/98765/":      "98765",
		"https://hh.ru/employer/555":            "",
		"https://example.com/jobs/123-go-dev":   "",
	}
	for url, want := range cases {
		if got := extractVacancyID(url); got != want {
			t.Fatalf("extractVacancyID(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestResolveRoleText(t *testing.T) {
	f := newTestFetcher("")
	text, err := f.ResolveRoleText(context.Background(), "Системный аналитик")
	if err != nil {
		t.Fatalf("resolve role: %v", err)
	}
	if !strings.Contains(text, "Системный аналитик") {
		t.Fatalf("text = %q", text)
	}

	if _, err := f.ResolveRoleText(context.Background(), "   "); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}
