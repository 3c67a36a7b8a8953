// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeCloseRemovesTrackedFiles(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("artifact-%d.tmp", i))
		require.NoError(t, os.WriteFile(paths[i], []byte("x"), 0o600))
	}

	scope := NewBaseScope()
	for _, p := range paths {
		scope.TrackTempFile(p)
	}
	scope.Close()

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "expected %s to be removed", p)
	}
}

func TestScopeCloseIsIdempotentAndTolerant(t *testing.T) {
	scope := NewBaseScope()
	scope.TrackTempFile(filepath.Join(t.TempDir(), "never-created.tmp"))

	// Missing files are fine, and a second Close is a no-op.
	scope.Close()
	scope.Close()
	assert.Empty(t, scope.TempFiles())
}

func TestScopeErrorAccounting(t *testing.T) {
	scope := NewBaseScope()
	assert.False(t, scope.Failed())
	assert.NoError(t, scope.FirstError())

	first := fmt.Errorf("first failure")
	scope.Fail("step_a", first)
	scope.Fail("step_b", fmt.Errorf("consequence"))

	assert.True(t, scope.Failed())
	assert.Equal(t, first, scope.FirstError())
}

func TestChainPipesOutputToNextInput(t *testing.T) {
	chain := NewBaseChain("test_chain").
		Append(&doubler{BaseStep: *NewBaseStep("double_once")}).
		Append(&doubler{BaseStep: *NewBaseStep("double_twice")})

	scope := NewBaseScope()
	scope.SetContext(context.Background())
	scope.Add(ScopeIn, 3)

	chain.Execute(scope)

	require.False(t, scope.Failed())
	assert.Equal(t, 12, scope.Get(ScopeIn))
}

func TestChainStopsAtFirstFailure(t *testing.T) {
	boom := &failer{BaseStep: *NewBaseStep("boom")}
	after := &doubler{BaseStep: *NewBaseStep("after")}

	chain := NewBaseChain("failing_chain").Append(boom).Append(after)

	scope := NewBaseScope()
	scope.SetContext(context.Background())
	scope.Add(ScopeIn, 3)

	chain.Execute(scope)

	require.True(t, scope.Failed())
	assert.False(t, after.ran)
}

type doubler struct {
	BaseStep
	ran bool
}

func (d *doubler) Execute(scope Scope) {
	d.ran = true
	scope.Add(d.OutputKey(), scope.Get(d.InputKey()).(int)*2)
}

type failer struct {
	BaseStep
}

func (f *failer) Execute(scope Scope) {
	scope.Fail(f.Name(), fmt.Errorf("deliberate failure"))
}
