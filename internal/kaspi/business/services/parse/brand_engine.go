package parse

import "strings"

type BrandService interface {
	IsBanned(brand string) bool
}

// BrandServiceKaspi отсекает бренды, запрещённые к выгрузке на маркетплейс.
type BrandServiceKaspi struct {
	banned map[string]struct{}
}

func NewBrandServiceKaspi(banned []string) *BrandServiceKaspi {
	bannedMap := make(map[string]struct{}, len(banned))
	for _, b := range banned {
		bannedMap[strings.ToLower(strings.TrimSpace(b))] = struct{}{}
	}
	return &BrandServiceKaspi{banned: bannedMap}
}

func (s *BrandServiceKaspi) IsBanned(brand string) bool {
	_, ok := s.banned[strings.ToLower(strings.TrimSpace(brand))]
	return ok
}
