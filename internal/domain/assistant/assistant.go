// Package assistant реализует FAQ-помощника EcoBot: статический подбор
// ответа по ключевым словам. Состояния нет, внешних вызовов нет - это
// чистый справочник, а не чат-бот.
package assistant

import "strings"

// Entry - одна статья справочника: ключевые слова и готовый ответ.
type Entry struct {
	Keywords []string
	Response string
}

// Matcher подбирает ответ по тексту вопроса.
// Правило: первая статья, у которой хотя бы одно ключевое слово входит
// в вопрос (без учёта регистра), побеждает. Порядок статей имеет значение.
type Matcher struct {
	entries  []Entry
	fallback string
}

// NewMatcher создаёт matcher с заданным справочником и запасным ответом.
func NewMatcher(entries []Entry, fallback string) *Matcher {
	return &Matcher{entries: entries, fallback: fallback}
}

// DefaultMatcher возвращает matcher со встроенным справочником EcoBot.
func DefaultMatcher() *Matcher {
	return NewMatcher(defaultEntries, defaultFallback)
}

// Reply возвращает ответ на вопрос. Для пустого вопроса и вопроса без
// совпадений возвращается запасной ответ.
func (m *Matcher) Reply(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return m.fallback
	}
	for _, entry := range m.entries {
		for _, keyword := range entry.Keywords {
			if strings.Contains(q, keyword) {
				return entry.Response
			}
		}
	}
	return m.fallback
}

// Matched возвращает true, если для вопроса есть статья справочника.
func (m *Matcher) Matched(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return false
	}
	for _, entry := range m.entries {
		for _, keyword := range entry.Keywords {
			if strings.Contains(q, keyword) {
				return true
			}
		}
	}
	return false
}

var defaultEntries = []Entry{
	{
		Keywords: []string{"hello", "hi", "hey", "start"},
		Response: "Hello! 🌱 I'm EcoBot, your environmental learning assistant. I can help answer questions about ecology, sustainability, and your learning progress. What would you like to know?",
	},
	{
		Keywords: []string{"points", "score", "earning"},
		Response: "You earn points by completing tasks, participating in challenges, and maintaining your daily streak! Each task is worth different amounts based on difficulty. Keep learning to climb the leaderboards! 🏆",
	},
	{
		Keywords: []string{"badges", "achievements", "rewards"},
		Response: "Badges are earned by reaching specific milestones! You can unlock bronze, silver, and gold badges for various environmental topics like water conservation, energy efficiency, and biodiversity. Check your profile to see all available badges! 🏅",
	},
	{
		Keywords: []string{"streak", "daily", "login"},
		Response: "Your learning streak tracks consecutive days of activity. Complete at least one task or challenge each day to maintain your streak and earn bonus points! 🔥",
	},
	{
		Keywords: []string{"story", "episodes", "adventure"},
		Response: "Story Mode takes you on an environmental adventure! Complete tasks to unlock new episodes and follow characters as they solve real-world ecological challenges. It's learning through storytelling! 📚",
	},
	{
		Keywords: []string{"help", "support", "stuck"},
		Response: "I'm here to help! Try breaking down complex topics into smaller parts, review completed tasks for hints, or ask your educator for guidance. Remember, every expert was once a beginner! 💪",
	},
}

const defaultFallback = "That's a great question! While I have basic information about environmental topics and app features, for detailed questions, I recommend checking with your educator or exploring the tasks section for more comprehensive learning materials. 🌍"
