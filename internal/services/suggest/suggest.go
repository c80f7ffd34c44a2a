package suggest

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/ambunow/ambugo-app/internal/integrations/geocode"
)

// Service обслуживает автодополнение адресов для формы подачи заявки.
// Короткий ввод отсекается ещё до похода к провайдеру.
type Service struct {
	geo      geocode.Client
	minChars int
}

func New(geo geocode.Client, minChars int) *Service {
	if minChars <= 0 {
		minChars = 3
	}
	return &Service{geo: geo, minChars: minChars}
}

// Result несёт подсказки вместе с эхом порядкового номера запроса.
// Клиент сравнивает seq со своим счётчиком и молча отбрасывает
// устаревшие ответы, пришедшие не по порядку.
type Result struct {
	Seq         uint64
	Suggestions []geocode.Suggestion
}

// Suggest возвращает подсказки для частичного ввода. Ввод короче
// минимума даёт пустой список без обращения к провайдеру.
func (s *Service) Suggest(ctx context.Context, input string, seq uint64) (Result, error) {
	res := Result{Seq: seq}

	input = strings.TrimSpace(input)
	if len([]rune(input)) < s.minChars {
		return res, nil
	}

	raw, err := s.geo.Suggestions(ctx, input)
	if err != nil {
		return res, errors.Wrap(err, "fetch suggestions")
	}

	for _, sg := range raw {
		if sg.Description == "" || sg.PlaceID == "" {
			continue
		}
		res.Suggestions = append(res.Suggestions, sg)
	}
	return res, nil
}

// Resolve переводит выбранную подсказку в адрес с координатами.
func (s *Service) Resolve(ctx context.Context, placeID string) (geocode.Point, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return geocode.Point{}, errors.New("empty place id")
	}

	p, err := s.geo.PlaceDetails(ctx, placeID)
	if err != nil {
		return geocode.Point{}, errors.Wrap(err, "resolve place")
	}
	return p, nil
}
