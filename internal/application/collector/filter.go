package collector

import (
	"strings"

	"github.com/alejandrodnm/polytrack/internal/domain"
)

// Filter decide qué mercados descubiertos entran al catálogo haciendo
// matching case-insensitive de keywords sobre la pregunta del mercado.
// Sin keywords configuradas acepta todos los mercados del tag.
type Filter struct {
	keywords []string
}

// NewFilter normaliza las keywords (lowercase, sin espacios sobrantes).
func NewFilter(keywords []string) *Filter {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Filter{keywords: lowered}
}

// Matches devuelve true si la pregunta contiene alguna keyword.
func (f *Filter) Matches(question string) bool {
	if len(f.keywords) == 0 {
		return true
	}
	if question == "" {
		return false
	}
	q := strings.ToLower(question)
	for _, kw := range f.keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// Apply devuelve los mercados que pasan el filtro, en el orden de entrada.
func (f *Filter) Apply(markets []domain.Market) []domain.Market {
	result := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if f.Matches(m.Question) {
			result = append(result, m)
		}
	}
	return result
}
