// Package mocks provides test doubles for the identityapi client.
package mocks

import (
	"context"

	identityapi "github.com/sells-group/phonelink/pkg/identityapi"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetUser provides a mock function with given fields: ctx, uid
func (_m *MockClient) GetUser(ctx context.Context, uid string) (*identityapi.User, error) {
	ret := _m.Called(ctx, uid)

	if len(ret) == 0 {
		panic("no return value specified for GetUser")
	}

	var r0 *identityapi.User
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*identityapi.User, error)); ok {
		return rf(ctx, uid)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *identityapi.User); ok {
		r0 = rf(ctx, uid)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*identityapi.User)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, uid)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CreateUser provides a mock function with given fields: ctx, req
func (_m *MockClient) CreateUser(ctx context.Context, req identityapi.CreateUserRequest) (*identityapi.User, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for CreateUser")
	}

	var r0 *identityapi.User
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, identityapi.CreateUserRequest) (*identityapi.User, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, identityapi.CreateUserRequest) *identityapi.User); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*identityapi.User)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, identityapi.CreateUserRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateUser provides a mock function with given fields: ctx, uid, req
func (_m *MockClient) UpdateUser(ctx context.Context, uid string, req identityapi.UpdateUserRequest) (*identityapi.User, error) {
	ret := _m.Called(ctx, uid, req)

	if len(ret) == 0 {
		panic("no return value specified for UpdateUser")
	}

	var r0 *identityapi.User
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, identityapi.UpdateUserRequest) (*identityapi.User, error)); ok {
		return rf(ctx, uid, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, identityapi.UpdateUserRequest) *identityapi.User); ok {
		r0 = rf(ctx, uid, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*identityapi.User)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, identityapi.UpdateUserRequest) error); ok {
		r1 = rf(ctx, uid, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
