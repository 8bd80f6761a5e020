package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockAlerter struct {
	mock.Mock
}

type MockAlerter_Expecter struct {
	mock *mock.Mock
}

func NewMockAlerter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAlerter {
	m := &MockAlerter{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAlerter) EXPECT() *MockAlerter_Expecter {
	return &MockAlerter_Expecter{mock: &m.Mock}
}

func (m *MockAlerter) Alert(ctx context.Context, message string) error {
	ret := m.Called(ctx, message)
	return ret.Error(0)
}

type MockAlerter_Alert_Call struct {
	*mock.Call
}

func (e *MockAlerter_Expecter) Alert(ctx interface{}, message interface{}) *MockAlerter_Alert_Call {
	return &MockAlerter_Alert_Call{Call: e.mock.On("Alert", ctx, message)}
}

func (c *MockAlerter_Alert_Call) Return(err error) *MockAlerter_Alert_Call {
	c.Call.Return(err)
	return c
}
