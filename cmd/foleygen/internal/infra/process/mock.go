// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"context"
	"sync"
)

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockManager is a test double for Manager.
//
// Configure it by setting the function fields. A nil RunFunc or ExecFunc
// panics when called; a nil LookPathFunc returns name unchanged.
//
// The lock is released before the configured function runs so concurrent
// callers are not serialized by the mock.
//
// # Examples
//
//	mock := &MockManager{
//	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
//	        return []byte("NVIDIA A100-SXM4-80GB\n"), nil
//	    },
//	}
type MockManager struct {
	RunFunc      func(ctx context.Context, name string, args ...string) ([]byte, error)
	ExecFunc     func(ctx context.Context, spec Spec) (*Outcome, error)
	LookPathFunc func(name string) (string, error)

	// Calls records all method invocations for verification.
	Calls []Call

	mu sync.Mutex
}

// Call records a single method invocation.
type Call struct {
	Method string
	Name   string
	Args   []string
	Dir    string
}

func (m *MockManager) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
}

// Run delegates to RunFunc and records the call.
func (m *MockManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record(Call{Method: "Run", Name: name, Args: args})
	if m.RunFunc == nil {
		panic("MockManager.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// Exec delegates to ExecFunc and records the call.
func (m *MockManager) Exec(ctx context.Context, spec Spec) (*Outcome, error) {
	m.record(Call{Method: "Exec", Name: spec.Name, Args: spec.Args, Dir: spec.Dir})
	if m.ExecFunc == nil {
		panic("MockManager.ExecFunc not set")
	}
	return m.ExecFunc(ctx, spec)
}

// LookPath delegates to LookPathFunc and records the call.
func (m *MockManager) LookPath(name string) (string, error) {
	m.record(Call{Method: "LookPath", Name: name})
	if m.LookPathFunc == nil {
		return name, nil
	}
	return m.LookPathFunc(name)
}

// GetCalls returns a copy of all recorded calls.
func (m *MockManager) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Call, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// CallCount returns how many times method was invoked.
func (m *MockManager) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls.
func (m *MockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

var _ Manager = (*MockManager)(nil)
