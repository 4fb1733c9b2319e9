// Package shared — небольшие общие утилиты без внешних зависимостей.
package shared

import "math/rand/v2"

// Unique убирает повторы, сохраняя порядок первого появления.
// Нужен, например, чтобы администратор из ADMINS, указанный дважды, получил файл один раз.
func Unique[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Random возвращает псевдослучайное целое в [lo, hi] включительно; при lo >= hi — lo.
// Используется для пауз между страницами участников, криптостойкость не нужна.
func Random(lo, hi int) int {
	if lo >= hi {
		return lo
	}
	return rand.IntN(hi-lo+1) + lo // #nosec G404
}
