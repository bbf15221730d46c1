package content

import "github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK GATE
// Чистый вычислитель доступности контента. Состояние разблокировки нигде
// не хранится - оно пересчитывается на каждое чтение из счётчика выполненных
// задач, который поставляет вызывающий код.
// ══════════════════════════════════════════════════════════════════════════════

// Unlock - состояние доступности одного элемента каталога.
type Unlock struct {
	IsUnlocked bool

	// Remaining - сколько выполнений осталось до разблокировки (0, если открыт).
	Remaining int
}

// Evaluate вычисляет доступность каждого элемента каталога при данном числе
// выполненных задач. Функция тотальна и детерминирована: одинаковые аргументы
// всегда дают одинаковый результат, скрытого состояния нет.
//
// Элемент открыт тогда и только тогда, когда completions >= RequiredCompletions;
// порог 0 открыт всегда. Отрицательный completions трактуется как 0.
//
// Свойство монотонности: рост completions никогда не закрывает уже открытый
// элемент.
func Evaluate(catalog []Unlockable, completions int) map[shared.ContentID]Unlock {
	if completions < 0 {
		completions = 0
	}

	result := make(map[shared.ContentID]Unlock, len(catalog))
	for _, item := range catalog {
		unlocked := completions >= item.RequiredCompletions
		remaining := 0
		if !unlocked {
			remaining = item.RequiredCompletions - completions
		}
		result[item.ID] = Unlock{IsUnlocked: unlocked, Remaining: remaining}
	}
	return result
}

// EpisodeStatus - эпизод вместе с вычисленным состоянием доступности.
// Порядок среза повторяет порядок каталога - гейт его не переставляет.
type EpisodeStatus struct {
	Episode Episode
	Unlock  Unlock
}

// EvaluateEpisodes вычисляет доступность эпизодов, сохраняя порядок каталога.
func EvaluateEpisodes(episodes []Episode, completions int) []EpisodeStatus {
	catalog := make([]Unlockable, len(episodes))
	for i, e := range episodes {
		catalog[i] = e.Unlockable()
	}
	unlocks := Evaluate(catalog, completions)

	statuses := make([]EpisodeStatus, len(episodes))
	for i, e := range episodes {
		statuses[i] = EpisodeStatus{Episode: e, Unlock: unlocks[e.ID]}
	}
	return statuses
}
