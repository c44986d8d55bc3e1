// Package vacancy acquires the interview subject text: a vacancy fetched
// from hh.ru or an arbitrary URL, inline vacancy text, or a role name.
package vacancy

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"aiinterviewer/internal/models"
	"aiinterviewer/internal/redis"
)

const (
	hhAPIBaseURL = "https://api.hh.ru"
	userAgent    = "ai-interviewer/1.0"

	maxPlainTextLen = 4000
	cacheTTL        = 24 * time.Hour
)

var (
	vacancyPathRE = regexp.MustCompile(`(?i)/vacancy/(\d+)(?:[/?#]|$)`)
	metaDescRE    = regexp.MustCompile(`(?is)<meta\s+name="description"\s+content="(.*?)"\s*/?>`)
	ogDescRE      = regexp.MustCompile(`(?is)<meta\s+property="og:description"\s+content="(.*?)"\s*/?>`)
	scriptRE      = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	styleRE       = regexp.MustCompile(`(?is)<style.*?>.*?</style>`)
	tagRE         = regexp.MustCompile(`(?is)<[^>]+>`)
	spaceRE       = regexp.MustCompile(`\s+`)
)

// Fetcher resolves subject-matter text for new sessions. The redis cache
// is best-effort: a nil client disables caching, cache errors are logged
// and ignored.
type Fetcher struct {
	apiBase string
	httpc   *http.Client
	cache   *redis.Client
	log     *zap.Logger
}

// NewFetcher builds a Fetcher with the production hh.ru endpoint.
func NewFetcher(cache *redis.Client, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		apiBase: hhAPIBaseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		cache:   cache,
		log:     log,
	}
}

// ResolveVacancyText turns exactly one of (url, inline text) into subject
// text. Inline text wins when both are empty-checked upstream.
func (f *Fetcher) ResolveVacancyText(ctx context.Context, vacancyURL, vacancyText string) (string, error) {
	if text := strings.TrimSpace(vacancyText); text != "" {
		return text, nil
	}

	vacancyURL = strings.TrimSpace(vacancyURL)
	if vacancyURL == "" {
		return "", fmt.Errorf("%w: neither vacancy url nor vacancy text given", models.ErrVacancyNotParsable)
	}

	if cached, ok := f.cacheGet(ctx, vacancyURL); ok {
		return cached, nil
	}

	var (
		text string
		err  error
	)
	if id := extractVacancyID(vacancyURL); id != "" {
		text, err = f.fetchFromAPI(ctx, id)
	} else {
		text, err = f.fetchGenericPage(ctx, vacancyURL)
	}
	if err != nil {
		return "", err
	}

	f.cacheSet(ctx, vacancyURL, text)
	return text, nil
}

// ResolveRoleText builds the subject text for role-based sessions.
func (f *Fetcher) ResolveRoleText(_ context.Context, roleName string) (string, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return "", fmt.Errorf("%w: role name is required", models.ErrInvalidInput)
	}
	return fmt.Sprintf("Собеседование на роль: %s. Вакансия не задана, интервью строится по типовым требованиям этой роли.", roleName), nil
}

func extractVacancyID(url string) string {
	m := vacancyPathRE.FindStringSubmatch(url)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// hh.ru vacancy payload, trimmed to the fields worth showing the model.
type hhVacancy struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Experience  struct {
		Name string `json:"name"`
	} `json:"experience"`
	Employment struct {
		Name string `json:"name"`
	} `json:"employment"`
	KeySkills []struct {
		Name string `json:"name"`
	} `json:"key_skills"`
	Employer struct {
		Name string `json:"name"`
	} `json:"employer"`
}

func (f *Fetcher) fetchFromAPI(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiBase+"/vacancies/"+id, nil)
	if err != nil {
		return "", fmt.Errorf("build hh request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "ru_RU")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch vacancy %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: vacancy %s not found", models.ErrVacancyNotParsable, id)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hh api status %d for vacancy %s", resp.StatusCode, id)
	}

	var vacancy hhVacancy
	if err := json.NewDecoder(resp.Body).Decode(&vacancy); err != nil {
		return "", fmt.Errorf("%w: decode vacancy %s: %v", models.ErrVacancyNotParsable, id, err)
	}
	return formatVacancy(&vacancy), nil
}

func formatVacancy(v *hhVacancy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Название: %s\n", v.Name)
	if v.Employer.Name != "" {
		fmt.Fprintf(&b, "Компания: %s\n", v.Employer.Name)
	}
	if v.Experience.Name != "" {
		fmt.Fprintf(&b, "Опыт: %s\n", v.Experience.Name)
	}
	if v.Employment.Name != "" {
		fmt.Fprintf(&b, "Занятость: %s\n", v.Employment.Name)
	}
	if len(v.KeySkills) > 0 {
		names := make([]string, 0, len(v.KeySkills))
		for _, s := range v.KeySkills {
			names = append(names, s.Name)
		}
		fmt.Fprintf(&b, "Ключевые навыки: %s\n", strings.Join(names, ", "))
	}
	if v.Description != "" {
		fmt.Fprintf(&b, "Описание: %s\n", sanitizeText(tagRE.ReplaceAllString(v.Description, " ")))
	}
	return strings.TrimSpace(b.String())
}

func (f *Fetcher) fetchGenericPage(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("%w: unsupported url scheme: %s", models.ErrVacancyNotParsable, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrVacancyNotParsable, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", models.ErrVacancyNotParsable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d from %s", models.ErrVacancyNotParsable, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", models.ErrVacancyNotParsable, url, err)
	}
	html := string(body)
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("%w: empty response from %s", models.ErrVacancyNotParsable, url)
	}

	if meta := extractMetaDescription(html); meta != "" {
		return meta, nil
	}
	text := extractPlainText(html)
	if text == "" {
		return "", fmt.Errorf("%w: cannot extract description from %s", models.ErrVacancyNotParsable, url)
	}
	return text, nil
}

func extractMetaDescription(html string) string {
	if m := metaDescRE.FindStringSubmatch(html); len(m) > 1 {
		return sanitizeText(m[1])
	}
	if m := ogDescRE.FindStringSubmatch(html); len(m) > 1 {
		return sanitizeText(m[1])
	}
	return ""
}

func extractPlainText(html string) string {
	text := scriptRE.ReplaceAllString(html, " ")
	text = styleRE.ReplaceAllString(text, " ")
	text = tagRE.ReplaceAllString(text, " ")
	text = sanitizeText(text)
	runes := []rune(text)
	if len(runes) > maxPlainTextLen {
		text = string(runes[:maxPlainTextLen])
	}
	return text
}

func sanitizeText(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("vacancy:%x", sum[:16])
}

func (f *Fetcher) cacheGet(ctx context.Context, url string) (string, bool) {
	if f.cache == nil {
		return "", false
	}
	text, err := f.cache.Get(ctx, cacheKey(url))
	if err != nil {
		if err != redis.ErrCacheMiss {
			f.log.Warn("vacancy cache get failed", zap.Error(err))
		}
		return "", false
	}
	return text, true
}

func (f *Fetcher) cacheSet(ctx context.Context, url, text string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Set(ctx, cacheKey(url), text, cacheTTL); err != nil {
		f.log.Warn("vacancy cache set failed", zap.Error(err))
	}
}
