package mapping

// DefaultRules — встроенная таблица правил подбора категории.
// Ключевые слова в нижнем регистре и кириллице (вход нормализуется).
// Порядок фиксирован: частные правила выше, общие ниже.
func DefaultRules() []Rule {
	return []Rule{
		{
			Keywords:     []string{"мягкая игрушка", "плюшевый", "тедди", "мишка"},
			CategoryCode: "Master - Soft toys",
			ListingType:  "Мягкие игрушки",
		},
		{
			Keywords:     []string{"кукла", "пупс"},
			CategoryCode: "Master - Dolls",
			ListingType:  "Куклы",
		},
		{
			Keywords:     []string{"конструктор", "лего"},
			CategoryCode: "Master - Construction toys",
			ListingType:  "Конструкторы",
		},
		{
			Keywords:     []string{"игрушка", "игровой набор"},
			CategoryCode: "Master - Toys",
			ListingType:  "Игрушки",
		},
		{
			Keywords:     []string{"наушники", "гарнитура"},
			CategoryCode: "Master - Headphones",
			ListingType:  "Наушники",
		},
		{
			Keywords:     []string{"смартфон", "телефон"},
			CategoryCode: "Master - Smartphones",
			ListingType:  "Смартфоны",
		},
		{
			Keywords:     []string{"ноутбук"},
			CategoryCode: "Master - Notebooks",
			ListingType:  "Ноутбуки",
		},
		{
			Keywords:     []string{"чехол", "бампер"},
			CategoryCode: "Master - Cases",
			ListingType:  "Чехлы",
		},
		{
			Keywords:     []string{"кружка", "чашка", "термокружка"},
			CategoryCode: "Master - Mugs",
			ListingType:  "Кружки",
		},
		{
			Keywords:     []string{"рюкзак", "сумка"},
			CategoryCode: "Master - Bags",
			ListingType:  "Сумки и рюкзаки",
		},
		{
			Keywords:     []string{"футболка", "толстовка", "худи"},
			CategoryCode: "Master - Clothes",
			ListingType:  "Одежда",
		},
		// Общий хвост: любой товар с упоминанием детей уходит в детские
		// товары, если частные правила выше не сработали.
		{
			Keywords:     []string{"детск", "ребенк", "ребёнк"},
			CategoryCode: "Master - Kids goods",
			ListingType:  "Детские товары",
		},
	}
}
