// Package selection отслеживает строки, выбранные пользователем для массовой покупки
package selection

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// FreeTierRows - сколько строк видит пользователь без оплаты
const FreeTierRows = 10

// Set - выбранные строки
// инвариант: выбранное всегда подмножество видимого
type Set struct {
	visible  mapset.Set[string]
	selected mapset.Set[string]
}

// New создаёт выбор для заданного набора видимых строк
func New(visible []string) *Set {
	return &Set{
		visible:  mapset.NewThreadUnsafeSet(visible...),
		selected: mapset.NewThreadUnsafeSet[string](),
	}
}

// Select отмечает строку, невидимые строки игнорируются
// возвращает true, если строка теперь выбрана
func (s *Set) Select(id string) bool {
	if !s.visible.Contains(id) {
		return false
	}
	s.selected.Add(id)
	return true
}

// Deselect снимает отметку со строки
func (s *Set) Deselect(id string) {
	s.selected.Remove(id)
}

// Toggle переключает отметку строки
func (s *Set) Toggle(id string) bool {
	if s.selected.Contains(id) {
		s.selected.Remove(id)
		return false
	}
	return s.Select(id)
}

// SelectAll отмечает все видимые строки
func (s *Set) SelectAll() {
	s.selected = s.visible.Clone()
}

// Clear снимает все отметки
func (s *Set) Clear() {
	s.selected.Clear()
}

// SetVisible заменяет набор видимых строк (фильтр, поиск, пагинация)
// и пересекает с ним выбор, чтобы не осталось ссылок на пропавшие строки
func (s *Set) SetVisible(visible []string) {
	s.visible = mapset.NewThreadUnsafeSet(visible...)
	s.selected = s.selected.Intersect(s.visible)
}

// Contains сообщает, выбрана ли строка
func (s *Set) Contains(id string) bool {
	return s.selected.Contains(id)
}

// Len - количество выбранных строк
func (s *Set) Len() int {
	return s.selected.Cardinality()
}

// IDs возвращает выбранные идентификаторы в отсортированном порядке
func (s *Set) IDs() []string {
	ids := s.selected.ToSlice()
	slices.Sort(ids)
	return ids
}

// AllVisibleSelected сообщает, что выбрана каждая видимая строка
func (s *Set) AllVisibleSelected() bool {
	return s.visible.Cardinality() > 0 && s.selected.Equal(s.visible)
}

// CanUnlock сообщает, доступна ли кнопка "Unlock & Download" для бесплатного уровня:
// выбрано ровно required строк
func (s *Set) CanUnlock(required int) bool {
	return required > 0 && s.selected.Cardinality() == required
}
