package state

import (
	"sync"
)

// AccountMapper is the read side of the account mux, consumed by the HTTP
// and MQTT interfaces.
type AccountMapper interface {
	Accounts() map[string]*Account
	Account(name string) (*Account, bool)
}

var _ AccountMapper = (*AccountMux)(nil)

// AccountMux holds every configured account's device tree, keyed by the
// account's configured name.
type AccountMux struct {
	lock sync.RWMutex

	accountByName map[string]*Account
}

func NewAccountMux() *AccountMux {
	return &AccountMux{
		accountByName: map[string]*Account{},
	}
}

func (m *AccountMux) Add(name string, a *Account) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.accountByName[name] = a
}

func (m *AccountMux) Remove(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.accountByName, name)
}

func (m *AccountMux) Accounts() map[string]*Account {
	m.lock.RLock()
	defer m.lock.RUnlock()

	result := make(map[string]*Account, len(m.accountByName))
	for k, v := range m.accountByName {
		result[k] = v
	}
	return result
}

func (m *AccountMux) Account(name string) (*Account, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	a, found := m.accountByName[name]
	return a, found
}
