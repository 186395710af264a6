package rbac

import (
	"context"
	"time"

	"worktrack/server/internal/model"
)

// In-memory fakes shared by the package tests.

type memoryAccounts struct {
	accounts map[string]model.Account
}

func newMemoryAccounts(accounts ...model.Account) *memoryAccounts {
	m := &memoryAccounts{accounts: make(map[string]model.Account)}
	for _, account := range accounts {
		m.accounts[account.ID] = account
	}
	return m
}

func (m *memoryAccounts) AccountByID(_ context.Context, id string) (model.Account, bool, error) {
	account, ok := m.accounts[id]
	return account, ok, nil
}

type memoryKeys struct {
	keys map[string]model.SecretKey
}

func newMemoryKeys(keys ...model.SecretKey) *memoryKeys {
	m := &memoryKeys{keys: make(map[string]model.SecretKey)}
	for _, key := range keys {
		m.keys[key.ID] = key
	}
	return m
}

func (m *memoryKeys) InsertKey(_ context.Context, key model.SecretKey) error {
	m.keys[key.ID] = key
	return nil
}

func (m *memoryKeys) ActiveKey(_ context.Context, keyString, role string) (model.SecretKey, bool, error) {
	for _, key := range m.keys {
		if key.Key == keyString && key.Role == role && key.IsActive {
			return key, true, nil
		}
	}
	return model.SecretKey{}, false, nil
}

func (m *memoryKeys) ClaimKey(_ context.Context, keyID, usedBy string, usedAt time.Time) (bool, error) {
	key, ok := m.keys[keyID]
	if !ok || key.UsedAt != nil {
		return false, nil
	}
	key.UsedBy = &usedBy
	key.UsedAt = &usedAt
	m.keys[keyID] = key
	return true, nil
}

func (m *memoryKeys) KeyByID(_ context.Context, id string) (model.SecretKey, bool, error) {
	key, ok := m.keys[id]
	return key, ok, nil
}

func (m *memoryKeys) DeactivateKey(_ context.Context, id string) error {
	key := m.keys[id]
	key.IsActive = false
	m.keys[id] = key
	return nil
}

func account(id, role, classroom, department string) model.Account {
	acct := model.Account{ID: id, Role: role, IsActive: true}
	if classroom != "" {
		acct.Classroom = &classroom
	}
	if department != "" {
		acct.Department = &department
	}
	return acct
}
