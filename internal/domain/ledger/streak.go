package ledger

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// STREAK POLICY
// ══════════════════════════════════════════════════════════════════════════════

// StreakPolicy решает, какой должна стать серия после пропущенного дня.
// Возвращаемое значение - серия ДО учёта сегодняшней активности
// (RecordDailyActivity прибавит 1 за сегодняшний день сам).
//
// Исходное поведение продукта правило не фиксирует, поэтому выбор вынесен
// в конфигурацию вместо догадки.
type StreakPolicy func(lastActive, today time.Time) int

// ResetToZero - пропуск дня полностью обнуляет серию: сегодняшняя активность
// начнёт новую серию с 1.
func ResetToZero(lastActive, today time.Time) int {
	return 0
}

// ResetToOne - пропуск дня сохраняет один "день доброй воли": сегодняшняя
// активность даст серию 2. Мягкий вариант для младших школьников.
func ResetToOne(lastActive, today time.Time) int {
	return 1
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK AUDIT
// ══════════════════════════════════════════════════════════════════════════════

// AuditStreak применяет политику к снапшоту пользователя, пропустившего хотя бы
// один полный день. Используется фоновым аудитом: в отличие от
// RecordDailyActivity серия сбрасывается без засчитывания активности, поэтому
// LastActiveDate снапшота не меняется.
//
// Возвращает (change, true), если серия была сброшена. Вчерашняя активность
// (days == 1) серию не ломает: сегодняшний день ещё не закончился.
func AuditStreak(snap *Snapshot, policy StreakPolicy, today time.Time) (StreakChange, bool) {
	if snap == nil || snap.Streak == 0 || snap.LastActiveDate.IsZero() {
		return StreakChange{}, false
	}
	if policy == nil {
		policy = ResetToZero
	}

	days := daysBetween(snap.LastActiveDate, dateOnly(today))
	if days <= 1 {
		return StreakChange{}, false
	}

	base := policy(snap.LastActiveDate, today)
	if base < 0 {
		base = 0
	}
	if base >= snap.Streak {
		return StreakChange{}, false
	}

	change := StreakChange{
		OldStreak:  snap.Streak,
		NewStreak:  base,
		DaysMissed: days,
	}
	snap.Streak = base
	return change, true
}
