package locks

import "context"

// Locker выдаёт взаимоисключающий токен по ключу (id товара).
// TryAcquire не блокирует: если токен уже занят, возвращает ok=false.
// Полученный токен держится на время одного перехода конвейера и
// освобождается через release вне зависимости от исхода перехода.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}
