// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

const (
	// DefaultMaxPathLength is the default bound on the number of getter calls in a tracked
	// access path. Longer paths are widened to unknown.
	DefaultMaxPathLength = 8

	// DefaultMaxFixpointIters is the default bound on the number of fixpoint passes over one
	// method body. On non-pathological control flow the fixpoint converges well below it.
	DefaultMaxFixpointIters = 64
)
