package values

type Config interface {
}

// KaspiValues — значения по умолчанию для выгрузки карточек на Kaspi.
type KaspiValues struct {
	// Делители маржи: retail = cost / divisor.
	TargetDivisor float64 `yaml:"target-divisor"`
	MinDivisor    float64 `yaml:"min-divisor"`

	DefaultCountry string `yaml:"default-country"`
	DefaultBrand   string `yaml:"default-brand"`

	TitleMaxLen       int `yaml:"title-max-len"`
	DescriptionMaxLen int `yaml:"description-max-len"`
}

type KaspiBannedBrands struct {
	BannedBrands []string `yaml:"banned"`
}

type Identity struct {
	Code int `yaml:"code"`
}
