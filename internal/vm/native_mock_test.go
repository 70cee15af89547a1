package vm

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/functions"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/value"
)

// hostBridge is the slice of host behavior a registered native callback
// delegates to. Mocked below so the tests control exactly how the host
// side fails: a returned error and an outright panic are the two paths
// the VM must translate into a HostError language exception.
type hostBridge interface {
	Invoke(args []value.Value) (value.Value, error)
}

// MockhostBridge is a mock of the hostBridge interface.
type MockhostBridge struct {
	ctrl     *gomock.Controller
	recorder *MockhostBridgeMockRecorder
}

// MockhostBridgeMockRecorder is the mock recorder for MockhostBridge.
type MockhostBridgeMockRecorder struct {
	mock *MockhostBridge
}

// NewMockhostBridge creates a new mock instance.
func NewMockhostBridge(ctrl *gomock.Controller) *MockhostBridge {
	mock := &MockhostBridge{ctrl: ctrl}
	mock.recorder = &MockhostBridgeMockRecorder{mock}

	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockhostBridge) EXPECT() *MockhostBridgeMockRecorder {
	return m.recorder
}

// Invoke mocks base method.
func (m *MockhostBridge) Invoke(args []value.Value) (value.Value, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Invoke", args)
	ret0, _ := ret[0].(value.Value)
	ret1, _ := ret[1].(error)

	return ret0, ret1
}

// Invoke indicates an expected call of Invoke.
func (mr *MockhostBridgeMockRecorder) Invoke(args any) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Invoke", reflect.TypeOf((*MockhostBridge)(nil).Invoke), args)
}

// A native callback whose host side returns a plain Go error must surface
// as a HostError runtime error when no handler is active.
func TestNativeCallbackErrorBecomesHostError(t *testing.T) {
	ctrl := gomock.NewController(t)
	bridge := NewMockhostBridge(ctrl)
	bridge.EXPECT().Invoke(gomock.Any()).Return(value.Value{}, errors.New("disk offline"))

	machine := New([]opcode.Instruction{
		insStr(opcode.Call, "read"),
		ins(opcode.Return),
	})
	machine.Functions.RegisterNative("read", functions.Signature{}, bridge.Invoke)

	_, err := machine.Run(machine.NewContext(0))
	require.Error(t, err)

	rt, ok := err.(*errcat.RuntimeError)
	require.True(t, ok)
	require.Equal(t, errcat.KindHostError, rt.Kind)
	require.Contains(t, rt.Description, "disk offline")
}

// A panicking host callback is recovered at the native-call boundary,
// translated into a HostError exception Value, and enters the normal
// unwinding path, so a surrounding try can catch it like any bytecode
// Throw.
func TestNativeCallbackPanicIsCaughtByEnclosingTry(t *testing.T) {
	ctrl := gomock.NewController(t)
	bridge := NewMockhostBridge(ctrl)
	bridge.EXPECT().Invoke(gomock.Any()).DoAndReturn(func([]value.Value) (value.Value, error) {
		panic("host went sideways")
	})

	machine := New([]opcode.Instruction{
		/*0*/ insInt(opcode.BeginTry, 2), // handler at IP 1+2=3
		/*1*/ insStr(opcode.Call, "read"),
		/*2*/ ins(opcode.Return), // skipped: the panic unwinds to the handler
		/*3*/ insStr(opcode.StoreException, "e"),
		/*4*/ insStr(opcode.LoadVar, "e"),
		/*5*/ ins(opcode.Return),
	})
	machine.Functions.RegisterNative("read", functions.Signature{}, bridge.Invoke)

	result, err := machine.Run(machine.NewContext(0))
	require.NoError(t, err)
	require.True(t, result.IsError())
	require.Equal(t, string(errcat.KindHostError), result.ErrorValue().TypeName)
	require.Contains(t, result.ErrorValue().Message, "host went sideways")
}
