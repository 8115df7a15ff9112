package state

import (
	"sync"
)

// Manager хранит диалоги администраторов по chat ID
type Manager struct {
	mu      sync.RWMutex
	dialogs map[int64]Dialog
}

// NewManager создаёт новый менеджер состояний
func NewManager() *Manager {
	return &Manager{
		dialogs: make(map[int64]Dialog),
	}
}

// Get возвращает диалог чата
func (sm *Manager) Get(chatID int64) (Dialog, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	d, ok := sm.dialogs[chatID]
	return d, ok
}

// GetState текущий шаг диалога
func (sm *Manager) GetState(chatID int64) DialogState {
	d, _ := sm.Get(chatID)
	return d.State
}

// Open начинает диалог возврата для бронирования, заменяя предыдущий
func (sm *Manager) Open(chatID, bookingID int64, totalPaid float64, messageID int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.dialogs[chatID] = Dialog{
		State:     StateRefundChoosing,
		BookingID: bookingID,
		TotalPaid: totalPaid,
		MessageID: messageID,
	}
}

// Update меняет диалог, если он открыт для того же бронирования
func (sm *Manager) Update(chatID, bookingID int64, fn func(d *Dialog)) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	d, ok := sm.dialogs[chatID]
	if !ok || d.BookingID != bookingID {
		return false
	}
	fn(&d)
	if d.State == StateNone {
		delete(sm.dialogs, chatID)
		return true
	}
	sm.dialogs[chatID] = d
	return true
}

// Clear закрывает диалог
func (sm *Manager) Clear(chatID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.dialogs, chatID)
}
