// Package mocks holds testify mocks of the ports interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSecretStore struct {
	mock.Mock
}

type MockSecretStore_Expecter struct {
	mock *mock.Mock
}

// NewMockSecretStore registers AssertExpectations on test cleanup.
func NewMockSecretStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSecretStore {
	m := &MockSecretStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSecretStore) EXPECT() *MockSecretStore_Expecter {
	return &MockSecretStore_Expecter{mock: &m.Mock}
}

func (m *MockSecretStore) Get(ctx context.Context, key string) (string, error) {
	ret := m.Called(ctx, key)
	return ret.String(0), ret.Error(1)
}

func (m *MockSecretStore) Put(ctx context.Context, key string, value string) error {
	ret := m.Called(ctx, key, value)
	return ret.Error(0)
}

func (m *MockSecretStore) Delete(ctx context.Context, key string) error {
	ret := m.Called(ctx, key)
	return ret.Error(0)
}

type MockSecretStore_Get_Call struct {
	*mock.Call
}

func (e *MockSecretStore_Expecter) Get(ctx interface{}, key interface{}) *MockSecretStore_Get_Call {
	return &MockSecretStore_Get_Call{Call: e.mock.On("Get", ctx, key)}
}

func (c *MockSecretStore_Get_Call) Return(value string, err error) *MockSecretStore_Get_Call {
	c.Call.Return(value, err)
	return c
}

type MockSecretStore_Put_Call struct {
	*mock.Call
}

func (e *MockSecretStore_Expecter) Put(ctx interface{}, key interface{}, value interface{}) *MockSecretStore_Put_Call {
	return &MockSecretStore_Put_Call{Call: e.mock.On("Put", ctx, key, value)}
}

func (c *MockSecretStore_Put_Call) Return(err error) *MockSecretStore_Put_Call {
	c.Call.Return(err)
	return c
}

type MockSecretStore_Delete_Call struct {
	*mock.Call
}

func (e *MockSecretStore_Expecter) Delete(ctx interface{}, key interface{}) *MockSecretStore_Delete_Call {
	return &MockSecretStore_Delete_Call{Call: e.mock.On("Delete", ctx, key)}
}

func (c *MockSecretStore_Delete_Call) Return(err error) *MockSecretStore_Delete_Call {
	c.Call.Return(err)
	return c
}
