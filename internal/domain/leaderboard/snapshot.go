// Package leaderboard содержит доменную модель рейтинга EcoQuest.
package leaderboard

import (
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - состояние рейтинга в момент времени.
// Снапшоты нужны для расчёта изменений позиций (RankChange) между
// пересборками и для быстрого чтения без пересчёта.
type Snapshot struct {
	// ID - уникальный идентификатор снапшота.
	ID string

	// SnapshotAt - время создания снапшота.
	SnapshotAt time.Time

	// TotalUsers - общее количество участников.
	TotalUsers int

	// TotalPoints - суммарные очки всех участников.
	TotalPoints int

	// AveragePoints - среднее число очков.
	AveragePoints shared.Points

	// Entries - строки рейтинга, отсортированные по рангу.
	Entries []*Entry

	// byID - индекс для быстрого поиска по ID.
	byID map[shared.UserID]*Entry
}

// NewSnapshot создаёт снапшот из отсортированного Ranking.
func NewSnapshot(id string, ranking *Ranking) *Snapshot {
	if ranking == nil {
		return NewEmptySnapshot(id)
	}

	entries := ranking.All()
	byID := make(map[shared.UserID]*Entry, len(entries))

	var totalPoints int
	for _, entry := range entries {
		byID[entry.UserID] = entry
		totalPoints += int(entry.Points)
	}

	var avg shared.Points
	if len(entries) > 0 {
		avg = shared.Points(totalPoints / len(entries))
	}

	return &Snapshot{
		ID:            id,
		SnapshotAt:    time.Now().UTC(),
		TotalUsers:    len(entries),
		TotalPoints:   totalPoints,
		AveragePoints: avg,
		Entries:       entries,
		byID:          byID,
	}
}

// NewEmptySnapshot создаёт пустой снапшот.
func NewEmptySnapshot(id string) *Snapshot {
	return &Snapshot{
		ID:         id,
		SnapshotAt: time.Now().UTC(),
		Entries:    make([]*Entry, 0),
		byID:       make(map[shared.UserID]*Entry),
	}
}

// GetByID возвращает строку по ID пользователя.
func (s *Snapshot) GetByID(userID shared.UserID) *Entry {
	if s.byID == nil {
		return nil
	}
	return s.byID[userID]
}

// GetRank возвращает ранг пользователя. 0, если пользователь не найден.
func (s *Snapshot) GetRank(userID shared.UserID) Rank {
	entry := s.GetByID(userID)
	if entry == nil {
		return 0
	}
	return entry.Rank
}

// Top возвращает топ-N строк.
func (s *Snapshot) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	result := make([]*Entry, n)
	copy(result, s.Entries[:n])
	return result
}

// Page возвращает страницу рейтинга. page начинается с 1.
func (s *Snapshot) Page(page, pageSize int) []*Entry {
	if page < 1 || pageSize <= 0 {
		return nil
	}

	from := (page - 1) * pageSize
	to := from + pageSize

	if from >= len(s.Entries) {
		return nil
	}
	if to > len(s.Entries) {
		to = len(s.Entries)
	}

	result := make([]*Entry, to-from)
	copy(result, s.Entries[from:to])
	return result
}

// Neighbors возвращает соседей пользователя по рангу (±rangeSize),
// включая самого пользователя.
func (s *Snapshot) Neighbors(userID shared.UserID, rangeSize int) []*Entry {
	if s.GetByID(userID) == nil {
		return nil
	}

	var idx int
	for i, e := range s.Entries {
		if e.UserID == userID {
			idx = i
			break
		}
	}

	from := idx - rangeSize
	to := idx + rangeSize + 1
	if from < 0 {
		from = 0
	}
	if to > len(s.Entries) {
		to = len(s.Entries)
	}

	result := make([]*Entry, to-from)
	copy(result, s.Entries[from:to])
	return result
}

// IsEmpty возвращает true, если снапшот пуст.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Entries) == 0
}

// Count возвращает количество строк.
func (s *Snapshot) Count() int {
	return len(s.Entries)
}

// Contains проверяет, есть ли пользователь в снапшоте.
func (s *Snapshot) Contains(userID shared.UserID) bool {
	return s.GetByID(userID) != nil
}

// RebuildIndex перестраивает внутренний индекс byID.
// Используется после десериализации из хранилища.
func (s *Snapshot) RebuildIndex() {
	s.byID = make(map[shared.UserID]*Entry, len(s.Entries))
	for _, entry := range s.Entries {
		s.byID[entry.UserID] = entry
	}
}

// String возвращает строковое представление для логирования.
func (s *Snapshot) String() string {
	return fmt.Sprintf(
		"Snapshot{ID: %s, Users: %d, AvgPoints: %d, At: %s}",
		s.ID, s.TotalUsers, s.AveragePoints, s.SnapshotAt.Format(time.RFC3339),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT DIFF
// ══════════════════════════════════════════════════════════════════════════════

// Diff - различия между двумя снапшотами. Из него строятся события
// RankChanged и пометки 🔼/🔽 в выдаче рейтинга.
type Diff struct {
	// OldSnapshot - предыдущий снапшот (может быть nil).
	OldSnapshot *Snapshot

	// NewSnapshot - новый снапшот.
	NewSnapshot *Snapshot

	// RankChanges - изменения рангов по пользователям.
	RankChanges map[shared.UserID]RankChange

	// NewEntries - участники, которых не было в старом снапшоте.
	NewEntries []*Entry

	// RemovedEntries - участники, пропавшие из рейтинга.
	RemovedEntries []*Entry
}

// CalculateDiff вычисляет разницу между снапшотами.
// oldSnapshot может быть nil (первая пересборка).
func CalculateDiff(oldSnapshot, newSnapshot *Snapshot) *Diff {
	diff := &Diff{
		OldSnapshot:    oldSnapshot,
		NewSnapshot:    newSnapshot,
		RankChanges:    make(map[shared.UserID]RankChange),
		NewEntries:     make([]*Entry, 0),
		RemovedEntries: make([]*Entry, 0),
	}

	if newSnapshot == nil {
		return diff
	}

	if oldSnapshot == nil || oldSnapshot.IsEmpty() {
		for _, entry := range newSnapshot.Entries {
			entry.RankChange = 0
			diff.NewEntries = append(diff.NewEntries, entry)
		}
		return diff
	}

	for _, newEntry := range newSnapshot.Entries {
		oldEntry := oldSnapshot.GetByID(newEntry.UserID)
		if oldEntry == nil {
			newEntry.RankChange = 0
			diff.NewEntries = append(diff.NewEntries, newEntry)
			continue
		}

		// Положительное значение = поднялся (был 10, стал 5 = +5).
		change := RankChange(int(oldEntry.Rank) - int(newEntry.Rank))
		newEntry.RankChange = change
		diff.RankChanges[newEntry.UserID] = change
	}

	for _, oldEntry := range oldSnapshot.Entries {
		if !newSnapshot.Contains(oldEntry.UserID) {
			diff.RemovedEntries = append(diff.RemovedEntries, oldEntry)
		}
	}

	return diff
}

// GetRankChange возвращает изменение ранга пользователя.
func (d *Diff) GetRankChange(userID shared.UserID) RankChange {
	return d.RankChanges[userID]
}

// HasChanges возвращает true, если есть какие-либо изменения.
func (d *Diff) HasChanges() bool {
	return len(d.RankChanges) > 0 || len(d.NewEntries) > 0 || len(d.RemovedEntries) > 0
}

// SignificantChanges возвращает пользователей с изменением ранга >= threshold.
func (d *Diff) SignificantChanges(threshold int) []shared.UserID {
	result := make([]shared.UserID, 0)
	for userID, change := range d.RankChanges {
		if change.IsSignificant(threshold) {
			result = append(result, userID)
		}
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT METADATA
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotMeta - метаданные снапшота без самих строк.
type SnapshotMeta struct {
	ID            string
	SnapshotAt    time.Time
	TotalUsers    int
	TotalPoints   int
	AveragePoints shared.Points
}

// ToMeta преобразует снапшот в метаданные.
func (s *Snapshot) ToMeta() SnapshotMeta {
	return SnapshotMeta{
		ID:            s.ID,
		SnapshotAt:    s.SnapshotAt,
		TotalUsers:    s.TotalUsers,
		TotalPoints:   s.TotalPoints,
		AveragePoints: s.AveragePoints,
	}
}
