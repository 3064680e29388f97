// Package selection は一括操作の対象として選択されたレコードIDの集合を扱う。
package selection

import "github.com/insurai/claimdesk/internal/model"

// Set は選択されたレコードIDの集合。
// 選択された順序を保持し、IDsは常に同じ順序で返す。
// ゼロ値は空の集合として利用できる。並行アクセスは呼び出し側で保護すること。
type Set struct {
	order []model.RecordID
	index map[model.RecordID]struct{}
}

// New は指定IDで初期化したSetを返す。重複は除外される。
func New(ids ...model.RecordID) *Set {
	s := &Set{}
	s.Replace(ids)
	return s
}

// Has はIDが選択されているかを返す。
func (s *Set) Has(id model.RecordID) bool {
	_, ok := s.index[id]
	return ok
}

// Len は選択数を返す。
func (s *Set) Len() int {
	return len(s.order)
}

// IDs は選択順のIDのコピーを返す。
func (s *Set) IDs() []model.RecordID {
	out := make([]model.RecordID, len(s.order))
	copy(out, s.order)
	return out
}

// Toggle はIDの選択状態を反転し、反転後に選択されているかを返す。
func (s *Set) Toggle(id model.RecordID) bool {
	if s.Has(id) {
		s.remove(id)
		return false
	}
	s.add(id)
	return true
}

// Clear は選択を無条件に空にする。
func (s *Set) Clear() {
	s.order = nil
	s.index = nil
}

// Replace は選択を指定IDちょうどに置き換える。
func (s *Set) Replace(ids []model.RecordID) {
	s.Clear()
	for _, id := range ids {
		s.add(id)
	}
}

// Retain は keep が false を返すIDを選択から外し、外した数を返す。
func (s *Set) Retain(keep func(model.RecordID) bool) int {
	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		if keep(id) {
			kept = append(kept, id)
			continue
		}
		delete(s.index, id)
		removed++
	}
	s.order = kept
	return removed
}

// ToggleAll は表示中の対象レコード全体に対する全選択・全解除を行う。
// 現在の選択数が対象数と等しい場合は全解除し、それ以外は選択を対象ちょうどに置き換える。
// 変更後に選択されている数を返す。
func (s *Set) ToggleAll(eligible []model.RecordID) int {
	if s.Len() == len(eligible) {
		s.Clear()
		return 0
	}
	s.Replace(eligible)
	return s.Len()
}

func (s *Set) add(id model.RecordID) {
	if s.index == nil {
		s.index = make(map[model.RecordID]struct{})
	}
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *Set) remove(id model.RecordID) {
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
