// Package mocks holds hand-written go.uber.org/mock/gomock collaborator
// fakes, in the shape mockgen would generate, for the fs.Collaborator
// interface; the mmap manager's own tests use real files instead, since
// mmapmgr.Manager takes a concrete *fs.File. SeleniaProject-Orizon's
// go.mod pulls in go.uber.org/mock as an indirect dependency; this
// package is where this module gives that library a direct, driven role
// rather than leaving collaborator contracts bypassed by ad hoc stand-ins.
package mocks

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/afiqket/vmcore/fs"
)

// MockCollaborator is a mock of the fs.Collaborator interface.
type MockCollaborator struct {
	ctrl     *gomock.Controller
	recorder *MockCollaboratorMockRecorder
}

// MockCollaboratorMockRecorder is the mock recorder for MockCollaborator.
type MockCollaboratorMockRecorder struct {
	mock *MockCollaborator
}

// NewMockCollaborator creates a new mock instance.
func NewMockCollaborator(ctrl *gomock.Controller) *MockCollaborator {
	mock := &MockCollaborator{ctrl: ctrl}
	mock.recorder = &MockCollaboratorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCollaborator) EXPECT() *MockCollaboratorMockRecorder {
	return m.recorder
}

// Readable mocks base method.
func (m *MockCollaborator) Readable() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Readable")
	ret0, _ := ret[0].(bool)
	return ret0
}

// Readable indicates an expected call of Readable.
func (mr *MockCollaboratorMockRecorder) Readable() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Readable", reflect.TypeOf((*MockCollaborator)(nil).Readable))
}

// Writable mocks base method.
func (m *MockCollaborator) Writable() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Writable")
	ret0, _ := ret[0].(bool)
	return ret0
}

// Writable indicates an expected call of Writable.
func (mr *MockCollaboratorMockRecorder) Writable() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Writable", reflect.TypeOf((*MockCollaborator)(nil).Writable))
}

// ReadAt mocks base method.
func (m *MockCollaborator) ReadAt(buf []byte, off int) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReadAt", buf, off)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ReadAt indicates an expected call of ReadAt.
func (mr *MockCollaboratorMockRecorder) ReadAt(buf, off any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReadAt", reflect.TypeOf((*MockCollaborator)(nil).ReadAt), buf, off)
}

// WriteAt mocks base method.
func (m *MockCollaborator) WriteAt(buf []byte, off int) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "WriteAt", buf, off)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// WriteAt indicates an expected call of WriteAt.
func (mr *MockCollaboratorMockRecorder) WriteAt(buf, off any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WriteAt", reflect.TypeOf((*MockCollaborator)(nil).WriteAt), buf, off)
}

var _ fs.Collaborator = (*MockCollaborator)(nil)
